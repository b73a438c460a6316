package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for unique constraint hits.
// Uniqueness is enforced at the storage layer rather than by an
// existence check so racing writers cannot slip through the gap between
// a read and the subsequent insert.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint
// violation, optionally scoped to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// Constraint names from the schema, used to map storage conflicts onto
// the domain error taxonomy.
const (
	ConstraintUserEmail       = "users_email_key"
	ConstraintStudentNIS      = "students_school_id_nis_key"
	ConstraintTrackingCode    = "applications_tracking_code_key"
	ConstraintAttendanceKey   = "attendance_student_id_class_id_date_key"
	ConstraintGradeNaturalKey = "grades_student_id_subject_id_term_id_key"
)
