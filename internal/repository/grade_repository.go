package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekolahkita/ppdb-api/internal/models"
)

// GradeRepository persists grade entries keyed by the natural key
// (student_id, subject_id, term_id).
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// UpsertBatch reconciles a batch of grade entries in one transaction,
// overwriting score and remarks on natural key conflicts. Any error
// aborts the whole batch.
func (r *GradeRepository) UpsertBatch(ctx context.Context, records []models.GradeEntry) (*models.BatchResult, error) {
	if len(records) == 0 {
		return &models.BatchResult{}, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grade batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO grades (id, school_id, student_id, subject_id, term_id, score, remarks, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (student_id, subject_id, term_id)
DO UPDATE SET score = EXCLUDED.score, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
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
		if err := tx.QueryRowxContext(ctx, query, rec.ID, rec.SchoolID, rec.StudentID, rec.SubjectID, rec.TermID, rec.Score, rec.Remarks, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt).Scan(&inserted); err != nil {
			return nil, fmt.Errorf("upsert grade for student %s: %w", rec.StudentID, err)
		}
		if inserted {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grade batch: %w", err)
	}
	committed = true
	return result, nil
}

// ListBySubjectAndTerm returns grade entries for a subject and term
// within a school.
func (r *GradeRepository) ListBySubjectAndTerm(ctx context.Context, schoolID, subjectID, termID string) ([]models.GradeEntry, error) {
	const query = `SELECT id, school_id, student_id, subject_id, term_id, score, remarks, recorded_by, created_at, updated_at
FROM grades WHERE school_id = $1 AND subject_id = $2 AND term_id = $3 ORDER BY student_id`
	var rows []models.GradeEntry
	if err := r.db.SelectContext(ctx, &rows, query, schoolID, subjectID, termID); err != nil {
		return nil, fmt.Errorf("list grades by subject and term: %w", err)
	}
	return rows, nil
}
