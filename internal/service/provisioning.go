package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahkita/ppdb-api/internal/models"
	"github.com/sekolahkita/ppdb-api/internal/repository"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type provisionStore interface {
	ApproveAndProvision(ctx context.Context, rec repository.ProvisionRecord) error
}

// ProvisionResult bundles everything created for an approved
// application. TempPassword is the one-time cleartext credential: it is
// returned exactly once for out-of-band delivery, never persisted in
// cleartext and never logged.
type ProvisionResult struct {
	User         *models.User    `json:"user"`
	Student      *models.Student `json:"student"`
	TempPassword string          `json:"temp_password"`
}

// Provisioner turns an approved application into exactly one login
// identity and one student record, atomically with the status flip.
type Provisioner struct {
	store           provisionStore
	tempPasswordLen int
	retryAttempts   int
	metrics         *MetricsService
	logger          *zap.Logger
}

// NewProvisioner constructs the provisioner. metrics may be nil.
func NewProvisioner(store provisionStore, tempPasswordLen, retryAttempts int, metrics *MetricsService, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryAttempts <= 0 {
		retryAttempts = 5
	}
	return &Provisioner{store: store, tempPasswordLen: tempPasswordLen, retryAttempts: retryAttempts, metrics: metrics, logger: logger}
}

// Provision creates the identity and student rows for app inside a
// single transaction together with the pending→approved transition.
// The email uniqueness constraint is global since email is the login
// key; a violation surfaces as DuplicateIdentity and nothing commits.
// Student index collisions are retried with a fresh code up to the
// configured bound.
func (p *Provisioner) Provision(ctx context.Context, app *models.Application, reviewerID string) (*ProvisionResult, error) {
	tempPassword, err := newTempPassword(p.tempPasswordLen)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credential")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credential")
	}

	fullName := strings.TrimSpace(app.FirstName + " " + app.LastName)
	now := time.Now().UTC()

	for attempt := 0; attempt < p.retryAttempts; attempt++ {
		nis, err := newNIS()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate student number")
		}

		schoolID := app.SchoolID
		user := &models.User{
			ID:           uuid.NewString(),
			SchoolID:     &schoolID,
			Email:        app.Email,
			PasswordHash: string(hash),
			FullName:     fullName,
			Role:         models.RoleStudent,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		// Field mapping from application to student is 1:1; the
		// applicant phone has no student column and is dropped.
		student := &models.Student{
			ID:            uuid.NewString(),
			SchoolID:      app.SchoolID,
			UserID:        &user.ID,
			NIS:           nis,
			FullName:      fullName,
			Grade:         app.TargetGrade,
			GuardianName:  app.GuardianName,
			GuardianPhone: app.GuardianPhone,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = p.store.ApproveAndProvision(ctx, repository.ProvisionRecord{
			ApplicationID: app.ID,
			ReviewerID:    reviewerID,
			ReviewedAt:    now,
			User:          user,
			Student:       student,
		})
		if err == nil {
			p.metrics.RecordProvisioned()
			return &ProvisionResult{User: user, Student: student, TempPassword: tempPassword}, nil
		}
		if errors.Is(err, repository.ErrNoPendingApplication) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "application has already been reviewed")
		}
		if repository.IsUniqueViolation(err, repository.ConstraintUserEmail) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "an account with this email already exists")
		}
		if repository.IsUniqueViolation(err, repository.ConstraintStudentNIS) {
			p.logger.Warn("student number collision, retrying",
				zap.String("application_id", app.ID),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision account")
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique student number")
}
