package models

import "time"

// WeaknessTypes is the fixed list of recognised weakness categories.
var WeaknessTypes = []string{
	"conceptual_understanding",
	"problem_solving",
	"memory_retention",
	"application_skills",
	"critical_thinking",
	"practical_skills",
	"theoretical_knowledge",
	"analysis_skills",
}

// ValidWeaknessType reports whether t is a recognised weakness category.
func ValidWeaknessType(t string) bool {
	for _, known := range WeaknessTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Weakness is a read-only analytic record of a student's weak area in a
// subject, either self-reported or derived from quiz performance.
type Weakness struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	WeaknessType string    `db:"weakness_type" json:"weakness_type"`
	Description  *string   `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// WeaknessDetail enriches Weakness with the subject name.
type WeaknessDetail struct {
	Weakness
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// WeaknessSubjectCount aggregates weaknesses per subject for statistics.
type WeaknessSubjectCount struct {
	SubjectID   string `db:"subject_id" json:"subject_id"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	Count       int    `db:"count" json:"count"`
}

// WeaknessStats summarises a student's weaknesses.
type WeaknessStats struct {
	Total     int                    `json:"total"`
	BySubject []WeaknessSubjectCount `json:"by_subject"`
}
