package models

import "time"

// Result records a graded quiz submission. One row per user and quiz.
type Result struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	QuizID         string    `db:"quiz_id" json:"quiz_id"`
	Score          int       `db:"score" json:"score"`
	TotalQuestions int       `db:"total_questions" json:"total_questions"`
	SubmittedAt    time.Time `db:"submitted_at" json:"submitted_at"`
}

// Percentage returns the score as a percentage of the total.
func (r *Result) Percentage() float64 {
	if r.TotalQuestions == 0 {
		return 0
	}
	return float64(r.Score) * 100 / float64(r.TotalQuestions)
}

// ResultDetail enriches Result with quiz and subject context.
type ResultDetail struct {
	Result
	QuizTitle   string `db:"quiz_title" json:"quiz_title"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	StudentName string `db:"student_name" json:"student_name,omitempty"`
}

// SubjectPerformance aggregates a student's results for one subject.
type SubjectPerformance struct {
	SubjectID    string  `db:"subject_id" json:"subject_id"`
	SubjectName  string  `db:"subject_name" json:"subject_name"`
	QuizCount    int     `db:"quiz_count" json:"quiz_count"`
	AverageScore float64 `db:"average_score" json:"average_score"`
}

// StudentAnalytics summarises a student's overall performance.
type StudentAnalytics struct {
	TotalQuizzes int                  `json:"total_quizzes"`
	AverageScore float64              `json:"average_score"`
	BestScore    float64              `json:"best_score"`
	WorstScore   float64              `json:"worst_score"`
	BySubject    []SubjectPerformance `json:"by_subject"`
	WeakAreas    []SubjectPerformance `json:"weak_areas"`
}
