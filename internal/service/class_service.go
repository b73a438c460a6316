package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type classAdminRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	AssignTeacher(ctx context.Context, assignment *models.TeacherAssignment) error
}

type teacherDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AssignTeacherRequest links a teacher to a class, optionally scoped to
// a subject.
type AssignTeacherRequest struct {
	ClassID   string  `json:"-"`
	TeacherID string  `json:"teacher_id" validate:"required"`
	SubjectID *string `json:"subject_id,omitempty"`
}

// ClassService manages class rosters on the admin side. Assignments
// written here are what the gate's membership check reads.
type ClassService struct {
	repo      classAdminRepository
	users     teacherDirectory
	gate      *Gate
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classAdminRepository, users teacherDirectory, gate *Gate, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, users: users, gate: gate, validator: validate, logger: logger}
}

// AssignTeacher grants a teacher write access to a class. Restricted to
// admins of the class's school; the teacher must hold the TEACHER role
// in the same school.
func (s *ClassService) AssignTeacher(ctx context.Context, actor models.Actor, req AssignTeacherRequest) (*models.TeacherAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	class, err := s.repo.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.gate.Authorize(actor, models.RoleAdmin, class.SchoolID); err != nil {
		return nil, err
	}

	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user does not hold the teacher role")
	}
	if teacher.SchoolID == nil || *teacher.SchoolID != class.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher belongs to a different school")
	}

	assignment := &models.TeacherAssignment{
		ID:        uuid.NewString(),
		TeacherID: teacher.ID,
		ClassID:   class.ID,
		SubjectID: req.SubjectID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AssignTeacher(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teacher")
	}

	s.logger.Info("teacher assigned to class",
		zap.String("class_id", class.ID),
		zap.String("teacher_id", teacher.ID))
	return assignment, nil
}
