package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahkita/ppdb-api/internal/models"
	"github.com/sekolahkita/ppdb-api/internal/repository"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type schoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	SetApproved(ctx context.Context, id string, approved bool) error
}

type schoolUserWriter interface {
	Create(ctx context.Context, user *models.User) error
}

// SchoolCreatedHook is invoked synchronously after a school is created.
// Hooks run in registration order; a hook failure is logged but does not
// roll back the creation.
type SchoolCreatedHook func(ctx context.Context, school *models.School)

// CreateSchoolRequest is the school creation payload.
type CreateSchoolRequest struct {
	DistrictID string `json:"district_id" validate:"required"`
	Name       string `json:"name" validate:"required,min=3"`
}

// CreateSchoolAdminRequest is the payload for bootstrapping a school's
// admin account.
type CreateSchoolAdminRequest struct {
	SchoolID string `json:"-"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
}

// SchoolService manages school registration, approval and admin account
// bootstrap. All three operations are restricted to super admins.
type SchoolService struct {
	repo      schoolRepository
	users     schoolUserWriter
	gate      *Gate
	validator *validator.Validate
	logger    *zap.Logger
	hooks     []SchoolCreatedHook
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolRepository, users schoolUserWriter, gate *Gate, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, users: users, gate: gate, validator: validate, logger: logger}
}

// OnSchoolCreated registers a hook called after each successful creation.
func (s *SchoolService) OnSchoolCreated(hook SchoolCreatedHook) {
	s.hooks = append(s.hooks, hook)
}

// Create registers a new school. New schools start unapproved and cannot
// accept applications until approved.
func (s *SchoolService) Create(ctx context.Context, actor models.Actor, req CreateSchoolRequest) (*models.School, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only super admins can register schools")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	now := time.Now().UTC()
	school := &models.School{
		ID:         uuid.NewString(),
		DistrictID: req.DistrictID,
		Name:       req.Name,
		Approved:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}

	for _, hook := range s.hooks {
		hook(ctx, school)
	}

	s.logger.Info("school registered",
		zap.String("school_id", school.ID),
		zap.String("district_id", school.DistrictID))
	return school, nil
}

// Approve marks a school as approved so it can accept applications.
func (s *SchoolService) Approve(ctx context.Context, actor models.Actor, schoolID string) (*models.School, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only super admins can approve schools")
	}

	school, err := s.repo.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if school.Approved {
		return school, nil
	}

	if err := s.repo.SetApproved(ctx, schoolID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve school")
	}
	school.Approved = true
	school.UpdatedAt = time.Now().UTC()

	s.logger.Info("school approved", zap.String("school_id", schoolID))
	return school, nil
}

// CreateAdmin bootstraps the admin account for a school. The email is
// the global login key, so a duplicate surfaces as DuplicateIdentity
// regardless of tenant.
func (s *SchoolService) CreateAdmin(ctx context.Context, actor models.Actor, req CreateSchoolAdminRequest) (*models.User, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only super admins can create school admins")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admin payload")
	}

	school, err := s.repo.FindByID(ctx, req.SchoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credential")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		SchoolID:     &school.ID,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintUserEmail) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "an account with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin")
	}

	s.logger.Info("school admin created",
		zap.String("school_id", school.ID),
		zap.String("user_id", user.ID))
	return user, nil
}

// Get returns a school by ID.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}
