package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekolahkita/ppdb-api/internal/models"
)

// ErrNoPendingApplication signals that the guarded status update matched
// no row: the application is missing or already in a terminal state.
var ErrNoPendingApplication = errors.New("application is not pending")

// ApplicationRepository persists enrollment applications and owns the
// provisioning transaction that turns an approval into a login identity
// plus a student record.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application in pending state. Tracking code
// collisions surface as unique violations for the caller to retry.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	const query = `INSERT INTO applications (id, school_id, tracking_code, first_name, last_name, email, phone, guardian_name, guardian_phone, target_grade, status, created_at, updated_at)
VALUES (:id, :school_id, :tracking_code, :first_name, :last_name, :email, :phone, :guardian_name, :guardian_phone, :target_grade, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		if IsUniqueViolation(err, ConstraintTrackingCode) {
			return err
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns an application by identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, school_id, tracking_code, first_name, last_name, email, phone, guardian_name, guardian_phone, target_grade, status, reviewed_by, reviewed_at, reject_reason, created_at, updated_at
FROM applications WHERE id = $1 LIMIT 1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application by id: %w", err)
	}
	return &app, nil
}

// FindByTrackingCode returns an application by its public code.
func (r *ApplicationRepository) FindByTrackingCode(ctx context.Context, code string) (*models.Application, error) {
	const query = `SELECT id, school_id, tracking_code, first_name, last_name, email, phone, guardian_name, guardian_phone, target_grade, status, reviewed_by, reviewed_at, reject_reason, created_at, updated_at
FROM applications WHERE tracking_code = $1 LIMIT 1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application by tracking code: %w", err)
	}
	return &app, nil
}

// List returns applications matching the filter with a total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	base := `FROM applications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(first_name || ' ' || last_name) LIKE $%d OR tracking_code = $%d)", len(args)+1, len(args)+1, len(args)+2))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%", strings.ToUpper(filter.Search))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at":  true,
		"updated_at":  true,
		"status":      true,
		"reviewed_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT id, school_id, tracking_code, first_name, last_name, email, phone, guardian_name, guardian_phone, target_grade, status, reviewed_by, reviewed_at, reject_reason, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, sortOrder, pageSize, offset)

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	return apps, total, nil
}

// Reject transitions a pending application to rejected. The status
// guard lives in the UPDATE itself so a concurrent decision cannot
// overwrite a terminal state.
func (r *ApplicationRepository) Reject(ctx context.Context, id, reviewerID, reason string, reviewedAt time.Time) error {
	const query = `UPDATE applications SET status = $2, reviewed_by = $3, reviewed_at = $4, reject_reason = $5, updated_at = $4 WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, models.ApplicationRejected, reviewerID, reviewedAt, reason, models.ApplicationPending)
	if err != nil {
		return fmt.Errorf("reject application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rejected rows: %w", err)
	}
	if affected == 0 {
		return ErrNoPendingApplication
	}
	return nil
}

// ProvisionRecord bundles the rows written by ApproveAndProvision.
// User and Student arrive fully built (ids, hashes, NIS) so the
// transaction only persists them.
type ProvisionRecord struct {
	ApplicationID string
	ReviewerID    string
	ReviewedAt    time.Time
	User          *models.User
	Student       *models.Student
}

// ApproveAndProvision flips a pending application to approved and
// creates the login identity and student record in one transaction.
// Either all three writes commit or none do. Unique violations on the
// user email or student NIS constraints are returned unwrapped so the
// service layer can translate or retry them.
func (r *ApplicationRepository) ApproveAndProvision(ctx context.Context, rec ProvisionRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provision: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const approveQuery = `UPDATE applications SET status = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4 WHERE id = $1 AND status = $5`
	result, err := tx.ExecContext(ctx, approveQuery, rec.ApplicationID, models.ApplicationApproved, rec.ReviewerID, rec.ReviewedAt, models.ApplicationPending)
	if err != nil {
		return fmt.Errorf("approve application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approved rows: %w", err)
	}
	if affected == 0 {
		return ErrNoPendingApplication
	}

	const userQuery = `INSERT INTO users (id, school_id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES (:id, :school_id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, rec.User); err != nil {
		if IsUniqueViolation(err, ConstraintUserEmail) {
			return err
		}
		return fmt.Errorf("provision user: %w", err)
	}

	const studentQuery = `INSERT INTO students (id, school_id, user_id, class_id, nis, full_name, grade, guardian_name, guardian_phone, active, created_at, updated_at)
VALUES (:id, :school_id, :user_id, :class_id, :nis, :full_name, :grade, :guardian_name, :guardian_phone, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, studentQuery, rec.Student); err != nil {
		if IsUniqueViolation(err, ConstraintStudentNIS) {
			return err
		}
		return fmt.Errorf("provision student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provision: %w", err)
	}
	committed = true
	return nil
}
