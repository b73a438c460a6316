package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekolahkita/ppdb-api/internal/models"
)

// AttendanceRepository persists attendance records keyed by the natural
// key (student_id, class_id, date).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// UpsertBatch reconciles a batch of attendance rows in one transaction.
// Rows matching an existing natural key overwrite status and remarks;
// the rest insert. Any error aborts the whole batch. Resubmitting an
// identical batch leaves the row count unchanged.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, records []models.Attendance) (*models.BatchResult, error) {
	if len(records) == 0 {
		return &models.BatchResult{}, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// xmax = 0 distinguishes a fresh insert from a conflict update.
	const query = `INSERT INTO attendance (id, school_id, class_id, student_id, date, status, remarks, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (student_id, class_id, date)
DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`

	result := &models.BatchResult{}
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var inserted bool
		if err := tx.QueryRowxContext(ctx, query, rec.ID, rec.SchoolID, rec.ClassID, rec.StudentID, rec.Date, rec.Status, rec.Remarks, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt).Scan(&inserted); err != nil {
			return nil, fmt.Errorf("upsert attendance for student %s: %w", rec.StudentID, err)
		}
		if inserted {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance batch: %w", err)
	}
	committed = true
	return result, nil
}

// ListByClassAndDate returns attendance rows for a class on a date.
func (r *AttendanceRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.Attendance, error) {
	const query = `SELECT id, school_id, class_id, student_id, date, status, remarks, recorded_by, created_at, updated_at
FROM attendance WHERE class_id = $1 AND date = $2 ORDER BY student_id`
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, classID, date); err != nil {
		return nil, fmt.Errorf("list attendance by class and date: %w", err)
	}
	return rows, nil
}
