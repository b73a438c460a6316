package models

import "time"

// Student is a tenant-scoped student record. UserID is nil for students
// admitted directly without a portal account; account provisioning sets
// it when an approved application creates both rows together.
type Student struct {
	ID            string    `db:"id" json:"id"`
	SchoolID      string    `db:"school_id" json:"school_id"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	ClassID       *string   `db:"class_id" json:"class_id,omitempty"`
	NIS           string    `db:"nis" json:"nis"`
	FullName      string    `db:"full_name" json:"full_name"`
	Grade         string    `db:"grade" json:"grade"`
	GuardianName  *string   `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone *string   `db:"guardian_phone" json:"guardian_phone,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
