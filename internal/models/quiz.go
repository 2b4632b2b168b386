package models

import "time"

// QuizDifficulty grades quiz difficulty.
type QuizDifficulty string

const (
	QuizDifficultyBeginner     QuizDifficulty = "beginner"
	QuizDifficultyIntermediate QuizDifficulty = "intermediate"
	QuizDifficultyAdvanced     QuizDifficulty = "advanced"
)

// Quiz is an authored quiz attached to a subject.
type Quiz struct {
	ID          string         `db:"id" json:"id"`
	SubjectID   string         `db:"subject_id" json:"subject_id"`
	CreatorID   string         `db:"creator_id" json:"creator_id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Difficulty  QuizDifficulty `db:"difficulty" json:"difficulty"`
	TimeLimit   int            `db:"time_limit" json:"time_limit"`
	Deadline    *time.Time     `db:"deadline" json:"deadline,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Open reports whether the quiz still accepts submissions at t.
func (q *Quiz) Open(t time.Time) bool {
	return q.Deadline == nil || t.Before(*q.Deadline)
}

// QuizDetail enriches Quiz with subject and creator names.
type QuizDetail struct {
	Quiz
	SubjectName string `db:"subject_name" json:"subject_name"`
	CreatorName string `db:"creator_name" json:"creator_name"`
}

// Question is a multiple-choice question with exactly four options.
type Question struct {
	ID            string `db:"id" json:"id"`
	QuizID        string `db:"quiz_id" json:"quiz_id"`
	Text          string `db:"text" json:"text"`
	Option1       string `db:"option1" json:"option1"`
	Option2       string `db:"option2" json:"option2"`
	Option3       string `db:"option3" json:"option3"`
	Option4       string `db:"option4" json:"option4"`
	CorrectOption int    `db:"correct_option" json:"correct_option,omitempty"`
	Explanation   string `db:"explanation" json:"explanation,omitempty"`
	Position      int    `db:"position" json:"position"`
}

// QuizWithQuestions bundles a quiz with its ordered questions.
type QuizWithQuestions struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}
