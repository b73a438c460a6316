package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// StudentRepository reads student records. Rows are only ever created
// inside the application approval transaction, so there is no insert
// path here.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// IDsByClass returns the set of student ids currently placed in the
// class. Batch writes validate membership against it before touching
// any row.
func (r *StudentRepository) IDsByClass(ctx context.Context, classID string) (map[string]struct{}, error) {
	const query = `SELECT id FROM students WHERE class_id = $1 AND active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID); err != nil {
		return nil, fmt.Errorf("list student ids by class: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
