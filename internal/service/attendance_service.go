package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type attendanceRepository interface {
	UpsertBatch(ctx context.Context, records []models.Attendance) (*models.BatchResult, error)
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.Attendance, error)
}

type classRoster interface {
	IDsByClass(ctx context.Context, classID string) (map[string]struct{}, error)
}

// AttendanceEntry is one student's attendance within a batch.
type AttendanceEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Remarks   *string `json:"remarks"`
}

// UpsertAttendanceBatchRequest describes a class/date batch write.
type UpsertAttendanceBatchRequest struct {
	ClassID string            `json:"class_id" validate:"required"`
	Date    string            `json:"date" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService reconciles per-class-per-day attendance batches.
type AttendanceService struct {
	repo         attendanceRepository
	roster       classRoster
	gate         *Gate
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	maxBatchSize int
}

// NewAttendanceService constructs the attendance service. metrics may
// be nil.
func NewAttendanceService(repo attendanceRepository, roster classRoster, gate *Gate, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, maxBatchSize int) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 200
	}
	svc := &AttendanceService{repo: repo, roster: roster, gate: gate, validator: validate, metrics: metrics, logger: logger, maxBatchSize: maxBatchSize}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// UpsertBatch writes a batch of attendance rows for one class and date.
// The gate check (teacher role, tenant, class membership) and all
// payload validation run before any row is touched; the batch then
// commits or aborts as a whole. Identical resubmission changes no row
// counts, only overwrites fields with identical values.
func (s *AttendanceService) UpsertBatch(ctx context.Context, actor models.Actor, req UpsertAttendanceBatchRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if len(req.Entries) > s.maxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch exceeds %d entries", s.maxBatchSize))
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	class, err := s.gate.AuthorizeClassWrite(ctx, actor, req.ClassID)
	if err != nil {
		return nil, err
	}

	roster, err := s.roster.IDsByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	seen := make(map[string]struct{}, len(req.Entries))
	records := make([]models.Attendance, len(req.Entries))
	for i, entry := range req.Entries {
		if _, ok := seen[entry.StudentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student %s in payload", entry.StudentID))
		}
		seen[entry.StudentID] = struct{}{}
		if _, ok := roster[entry.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in this class", entry.StudentID))
		}
		records[i] = models.Attendance{
			SchoolID:   class.SchoolID,
			ClassID:    req.ClassID,
			StudentID:  entry.StudentID,
			Date:       date,
			Status:     models.AttendanceStatus(strings.ToUpper(entry.Status)),
			Remarks:    entry.Remarks,
			RecordedBy: actor.ID,
		}
	}

	result, err := s.repo.UpsertBatch(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write attendance batch")
	}
	s.logger.Info("attendance batch written",
		zap.String("class_id", req.ClassID),
		zap.String("date", req.Date),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated))
	s.metrics.RecordBatchRows("attendance", "created", result.Created)
	s.metrics.RecordBatchRows("attendance", "updated", result.Updated)
	return result, nil
}

// ListByClassAndDate returns attendance for a class on a date, gated to
// teachers assigned to the class.
func (s *AttendanceService) ListByClassAndDate(ctx context.Context, actor models.Actor, classID, dateRaw string) ([]models.Attendance, error) {
	date, err := time.Parse("2006-01-02", dateRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if _, err := s.gate.AuthorizeClassWrite(ctx, actor, classID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, nil
}
