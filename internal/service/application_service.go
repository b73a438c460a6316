package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
	"github.com/sekolahkita/ppdb-api/internal/repository"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
	"github.com/sekolahkita/ppdb-api/pkg/export"
)

type applicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByTrackingCode(ctx context.Context, code string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	Reject(ctx context.Context, id, reviewerID, reason string, reviewedAt time.Time) error
}

type schoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type accountProvisioner interface {
	Provision(ctx context.Context, app *models.Application, reviewerID string) (*ProvisionResult, error)
}

// SubmitApplicationRequest is the public submission payload.
type SubmitApplicationRequest struct {
	SchoolID      string  `json:"school_id" validate:"required"`
	FirstName     string  `json:"first_name" validate:"required"`
	LastName      string  `json:"last_name" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	Phone         *string `json:"phone"`
	GuardianName  *string `json:"guardian_name"`
	GuardianPhone *string `json:"guardian_phone"`
	TargetGrade   string  `json:"target_grade" validate:"required"`
}

// RejectApplicationRequest carries the mandatory rejection reason.
type RejectApplicationRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// DecisionEvent describes a finalized review decision.
type DecisionEvent struct {
	Application *models.Application
	Decision    models.ApplicationStatus
}

// DecisionHook is invoked synchronously after a decision commits. Hook
// failures must not affect the decision; hooks that do slow work should
// hand off internally.
type DecisionHook func(ctx context.Context, event DecisionEvent)

// ApplicationService owns the enrollment application state machine:
// pending is the only initial state and approved/rejected are terminal.
// No transition is defined out of a terminal state.
type ApplicationService struct {
	repo        applicationRepository
	schools     schoolReader
	gate        *Gate
	provisioner accountProvisioner
	cache       *TrackingCache
	validator   *validator.Validate
	logger      *zap.Logger
	codeRetries int
	hooks       []DecisionHook
}

// OnDecision registers a hook called after each committed decision.
func (s *ApplicationService) OnDecision(hook DecisionHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *ApplicationService) notifyDecision(ctx context.Context, app *models.Application, decision models.ApplicationStatus) {
	for _, hook := range s.hooks {
		hook(ctx, DecisionEvent{Application: app, Decision: decision})
	}
}

// NewApplicationService constructs the service.
func NewApplicationService(repo applicationRepository, schools schoolReader, gate *Gate, provisioner accountProvisioner, cache *TrackingCache, validate *validator.Validate, logger *zap.Logger, codeRetries int) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if codeRetries <= 0 {
		codeRetries = 5
	}
	return &ApplicationService{repo: repo, schools: schools, gate: gate, provisioner: provisioner, cache: cache, validator: validate, logger: logger, codeRetries: codeRetries}
}

// Submit registers a new application in pending state. This is a public
// operation; no authorization check applies. The returned application
// carries the generated tracking code for the applicant.
func (s *ApplicationService) Submit(ctx context.Context, req SubmitApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	school, err := s.schools.FindByID(ctx, req.SchoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if !school.Approved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school is not accepting applications")
	}

	for attempt := 0; attempt < s.codeRetries; attempt++ {
		code, err := newTrackingCode()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate tracking code")
		}
		app := &models.Application{
			SchoolID:      req.SchoolID,
			TrackingCode:  code,
			FirstName:     strings.TrimSpace(req.FirstName),
			LastName:      strings.TrimSpace(req.LastName),
			Email:         strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:         req.Phone,
			GuardianName:  req.GuardianName,
			GuardianPhone: req.GuardianPhone,
			TargetGrade:   req.TargetGrade,
			Status:        models.ApplicationPending,
		}
		if err := s.repo.Create(ctx, app); err != nil {
			if repository.IsUniqueViolation(err, repository.ConstraintTrackingCode) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
		}
		return app, nil
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique tracking code")
}

// Track returns the public status view for a tracking code. Results are
// cached briefly; decisions invalidate the entry.
func (s *ApplicationService) Track(ctx context.Context, code string) (*models.ApplicationStatusView, error) {
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tracking code required")
	}
	if view := s.cache.Get(ctx, code); view != nil {
		return view, nil
	}
	app, err := s.repo.FindByTrackingCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	view := &models.ApplicationStatusView{
		TrackingCode: app.TrackingCode,
		SchoolID:     app.SchoolID,
		Status:       app.Status,
		TargetGrade:  app.TargetGrade,
		SubmittedAt:  app.CreatedAt,
		ReviewedAt:   app.ReviewedAt,
		RejectReason: app.RejectReason,
	}
	s.cache.Set(ctx, code, view)
	return view, nil
}

// List returns applications visible to the actor. Admins are forced to
// their own school; super-admins may filter any tenant.
func (s *ApplicationService) List(ctx context.Context, actor models.Actor, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	if actor.Role != models.RoleSuperAdmin {
		if actor.SchoolID == nil {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "actor has no school membership")
		}
		if err := s.gate.Authorize(actor, models.RoleAdmin, *actor.SchoolID); err != nil {
			return nil, nil, err
		}
		filter.SchoolID = *actor.SchoolID
	}
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return apps, pagination, nil
}

// ExportCSV renders the applications visible to the actor as CSV, one
// page at a time using the same filter and tenant rules as List.
func (s *ApplicationService) ExportCSV(ctx context.Context, actor models.Actor, filter models.ApplicationFilter) ([]byte, error) {
	apps, _, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"tracking_code", "first_name", "last_name", "email", "target_grade", "status", "submitted_at", "reviewed_at", "reject_reason"},
	}
	for _, app := range apps {
		row := map[string]string{
			"tracking_code": app.TrackingCode,
			"first_name":    app.FirstName,
			"last_name":     app.LastName,
			"email":         app.Email,
			"target_grade":  app.TargetGrade,
			"status":        string(app.Status),
			"submitted_at":  app.CreatedAt.Format(time.RFC3339),
		}
		if app.ReviewedAt != nil {
			row["reviewed_at"] = app.ReviewedAt.Format(time.RFC3339)
		}
		if app.RejectReason != nil {
			row["reject_reason"] = *app.RejectReason
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	raw, err := export.NewCSVExporter().Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return raw, nil
}

// Get returns one application for admin review, in any state.
func (s *ApplicationService) Get(ctx context.Context, applicationID string, actor models.Actor) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if err := s.gate.Authorize(actor, models.RoleAdmin, app.SchoolID); err != nil {
		return nil, err
	}
	return app, nil
}

// Approve transitions a pending application to approved and provisions
// the student account in the same transaction. The one-time credential
// in the result is for display-once delivery by the reviewer.
func (s *ApplicationService) Approve(ctx context.Context, applicationID string, actor models.Actor) (*ProvisionResult, error) {
	app, err := s.loadForReview(ctx, applicationID, actor)
	if err != nil {
		return nil, err
	}

	result, err := s.provisioner.Provision(ctx, app, actor.ID)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, app.TrackingCode)
	app.Status = models.ApplicationApproved
	reviewedAt := time.Now().UTC()
	app.ReviewedBy = &actor.ID
	app.ReviewedAt = &reviewedAt
	s.notifyDecision(ctx, app, models.ApplicationApproved)
	s.logger.Info("application approved",
		zap.String("application_id", app.ID),
		zap.String("school_id", app.SchoolID),
		zap.String("reviewer_id", actor.ID),
		zap.String("student_id", result.Student.ID))
	return result, nil
}

// Reject transitions a pending application to rejected with a mandatory
// non-empty reason.
func (s *ApplicationService) Reject(ctx context.Context, applicationID string, actor models.Actor, req RejectApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	app, err := s.loadForReview(ctx, applicationID, actor)
	if err != nil {
		return nil, err
	}

	reviewedAt := time.Now().UTC()
	if err := s.repo.Reject(ctx, app.ID, actor.ID, reason, reviewedAt); err != nil {
		if errors.Is(err, repository.ErrNoPendingApplication) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "application has already been reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
	}

	s.cache.Invalidate(ctx, app.TrackingCode)

	app.Status = models.ApplicationRejected
	app.ReviewedBy = &actor.ID
	app.ReviewedAt = &reviewedAt
	app.RejectReason = &reason
	s.notifyDecision(ctx, app, models.ApplicationRejected)
	s.logger.Info("application rejected",
		zap.String("application_id", app.ID),
		zap.String("school_id", app.SchoolID),
		zap.String("reviewer_id", actor.ID))
	return app, nil
}

// loadForReview loads the application and applies the reviewer gate and
// state precondition shared by both decisions. Nothing is mutated
// before these checks pass.
func (s *ApplicationService) loadForReview(ctx context.Context, applicationID string, actor models.Actor) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if err := s.gate.Authorize(actor, models.RoleAdmin, app.SchoolID); err != nil {
		return nil, err
	}
	if app.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application has already been reviewed")
	}
	if app.Status != models.ApplicationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is not pending")
	}
	return app, nil
}
