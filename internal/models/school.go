package models

import "time"

// District groups schools administratively.
type District struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// School is the tenant: the unit of data isolation. A school exists
// independently of its approval state and stays addressable by
// super-admins while unapproved.
type School struct {
	ID         string    `db:"id" json:"id"`
	DistrictID string    `db:"district_id" json:"district_id"`
	Name       string    `db:"name" json:"name"`
	Approved   bool      `db:"approved" json:"approved"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
