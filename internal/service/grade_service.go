package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type gradeRepository interface {
	UpsertBatch(ctx context.Context, entries []models.GradeEntry) (*models.BatchResult, error)
	ListBySubjectAndTerm(ctx context.Context, schoolID, subjectID, termID string) ([]models.GradeEntry, error)
}

// GradeEntryInput is one student's score within a batch.
type GradeEntryInput struct {
	StudentID string  `json:"student_id" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0,lte=100"`
	Remarks   *string `json:"remarks"`
}

// UpsertGradeBatchRequest describes a class/subject/term batch write.
type UpsertGradeBatchRequest struct {
	ClassID   string            `json:"class_id" validate:"required"`
	SubjectID string            `json:"subject_id" validate:"required"`
	TermID    string            `json:"term_id" validate:"required"`
	Entries   []GradeEntryInput `json:"entries" validate:"required,min=1,dive"`
}

// GradeService reconciles per-subject-per-term grade batches.
type GradeService struct {
	repo         gradeRepository
	roster       classRoster
	gate         *Gate
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	maxBatchSize int
}

// NewGradeService constructs the grade service. metrics may be nil.
func NewGradeService(repo gradeRepository, roster classRoster, gate *Gate, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, maxBatchSize int) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 200
	}
	return &GradeService{repo: repo, roster: roster, gate: gate, validator: validate, metrics: metrics, logger: logger, maxBatchSize: maxBatchSize}
}

// UpsertBatch writes a batch of grade entries for one class, subject and
// term. Validation is all-before-write: a single out-of-range score or
// unknown student aborts the entire batch with no partial effect.
func (s *GradeService) UpsertBatch(ctx context.Context, actor models.Actor, req UpsertGradeBatchRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if len(req.Entries) > s.maxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch exceeds %d entries", s.maxBatchSize))
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
	entries := make([]models.GradeEntry, len(req.Entries))
	for i, entry := range req.Entries {
		if _, ok := seen[entry.StudentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student %s in payload", entry.StudentID))
		}
		seen[entry.StudentID] = struct{}{}
		if _, ok := roster[entry.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in this class", entry.StudentID))
		}
		entries[i] = models.GradeEntry{
			SchoolID:   class.SchoolID,
			SubjectID:  req.SubjectID,
			TermID:     req.TermID,
			StudentID:  entry.StudentID,
			Score:      entry.Score,
			Remarks:    entry.Remarks,
			RecordedBy: actor.ID,
		}
	}

	result, err := s.repo.UpsertBatch(ctx, entries)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write grade batch")
	}
	s.logger.Info("grade batch written",
		zap.String("class_id", req.ClassID),
		zap.String("subject_id", req.SubjectID),
		zap.String("term_id", req.TermID),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated))
	s.metrics.RecordBatchRows("grade", "created", result.Created)
	s.metrics.RecordBatchRows("grade", "updated", result.Updated)
	return result, nil
}

// ListBySubjectAndTerm returns grade entries for a class/subject/term,
// gated to teachers assigned to the class.
func (s *GradeService) ListBySubjectAndTerm(ctx context.Context, actor models.Actor, classID, subjectID, termID string) ([]models.GradeEntry, error) {
	class, err := s.gate.AuthorizeClassWrite(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListBySubjectAndTerm(ctx, class.SchoolID, subjectID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return rows, nil
}
