package models

import "time"

// ApplicationStatus represents the enrollment application lifecycle.
// PENDING is the initial state; APPROVED and REJECTED are terminal.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// Terminal reports whether no further transition is permitted.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationApproved || s == ApplicationRejected
}

// Application is an enrollment application submitted by a prospective
// student or guardian. The tracking code is the public reference handed
// back to the applicant at submission.
type Application struct {
	ID            string            `db:"id" json:"id"`
	SchoolID      string            `db:"school_id" json:"school_id"`
	TrackingCode  string            `db:"tracking_code" json:"tracking_code"`
	FirstName     string            `db:"first_name" json:"first_name"`
	LastName      string            `db:"last_name" json:"last_name"`
	Email         string            `db:"email" json:"email"`
	Phone         *string           `db:"phone" json:"phone,omitempty"`
	GuardianName  *string           `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone *string           `db:"guardian_phone" json:"guardian_phone,omitempty"`
	TargetGrade   string            `db:"target_grade" json:"target_grade"`
	Status        ApplicationStatus `db:"status" json:"status"`
	ReviewedBy    *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectReason  *string           `db:"reject_reason" json:"reject_reason,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationStatusView is the public projection returned by tracking
// code lookups; it never exposes reviewer identity.
type ApplicationStatusView struct {
	TrackingCode string            `json:"tracking_code"`
	SchoolID     string            `json:"school_id"`
	Status       ApplicationStatus `json:"status"`
	TargetGrade  string            `json:"target_grade"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty"`
	RejectReason *string           `json:"reject_reason,omitempty"`
}

// ApplicationFilter captures admin listing criteria.
type ApplicationFilter struct {
	SchoolID  string
	Status    *ApplicationStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
