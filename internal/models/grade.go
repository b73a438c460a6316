package models

import "time"

// GradeEntry is a numeric score keyed by the natural key
// (student_id, subject_id, term_id). Scores are bounded to [0,100].
type GradeEntry struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TermID     string    `db:"term_id" json:"term_id"`
	Score      float64   `db:"score" json:"score"`
	Remarks    *string   `db:"remarks" json:"remarks,omitempty"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
