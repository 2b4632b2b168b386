package models

import "time"

// Subject represents a course subject students enroll in.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        *string   `db:"code" json:"code,omitempty"`
	Description string    `db:"description" json:"description"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail enriches Subject with the creator's name.
type SubjectDetail struct {
	Subject
	CreatorName string `db:"creator_name" json:"creator_name"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
