package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
	appErrors "github.com/sekolahkita/ppdb-api/pkg/errors"
)

type gateClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsTeacherAssigned(ctx context.Context, teacherID, classID string) (bool, error)
}

// Gate is the per-request authorization predicate combining role and
// tenant checks, plus class membership for class-scoped writes. It has
// no side effects; callers must stop on a denial before mutating
// anything.
type Gate struct {
	classes gateClassReader
	logger  *zap.Logger
}

// NewGate constructs the authorization gate.
func NewGate(classes gateClassReader, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{classes: classes, logger: logger}
}

// Authorize decides whether the actor may perform an operation that
// requires the given role against a resource owned by resourceSchoolID.
// Super-admins pass regardless of tenant. Everyone else must carry a
// school reference matching the resource and hold exactly the required
// role. A scoped role without a school reference is a malformed actor
// and is always denied.
func (g *Gate) Authorize(actor models.Actor, required models.UserRole, resourceSchoolID string) error {
	if !actor.Role.Valid() {
		return appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if actor.Role == models.RoleSuperAdmin {
		return nil
	}
	if actor.SchoolID == nil {
		return appErrors.Clone(appErrors.ErrForbidden, "actor has no school membership")
	}
	if *actor.SchoolID != resourceSchoolID {
		return appErrors.Clone(appErrors.ErrForbidden, "resource belongs to another school")
	}
	if actor.Role != required {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("operation requires role %s", required))
	}
	return nil
}

// AuthorizeClassWrite gates class-scoped record writes. It resolves the
// class to its tenant, applies the role and tenant rules for teachers,
// and then verifies the acting teacher is currently assigned to the
// class. The membership check runs against storage on every request;
// assignments change between requests so the answer is never cached.
// Returns the resolved class so callers reuse the tenant lookup.
func (g *Gate) AuthorizeClassWrite(ctx context.Context, actor models.Actor, classID string) (*models.Class, error) {
	class, err := g.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if err := g.Authorize(actor, models.RoleTeacher, class.SchoolID); err != nil {
		return nil, err
	}

	if actor.Role == models.RoleSuperAdmin {
		return class, nil
	}

	assigned, err := g.classes.IsTeacherAssigned(ctx, actor.ID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher is not assigned to this class")
	}
	return class, nil
}
