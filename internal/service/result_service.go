package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/agriquest/agriquest-api/internal/models"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
	"github.com/agriquest/agriquest-api/pkg/export"
)

type resultRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.ResultDetail, error)
	ListByQuiz(ctx context.Context, quizID string) ([]models.ResultDetail, error)
	OverallStats(ctx context.Context, userID string) (total int, avg, best, worst float64, err error)
	SubjectStats(ctx context.Context, userID string) ([]models.SubjectPerformance, error)
}

type resultQuizRepository interface {
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
}

// ResultService serves result history, analytics and exports.
type ResultService struct {
	results       resultRepository
	quizzes       resultQuizRepository
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	weakThreshold float64
	logger        *zap.Logger
}

// NewResultService constructs the result service.
func NewResultService(results resultRepository, quizzes resultQuizRepository, weakThreshold float64, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if weakThreshold <= 0 {
		weakThreshold = 70
	}
	return &ResultService{
		results:       results,
		quizzes:       quizzes,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		weakThreshold: weakThreshold,
		logger:        logger,
	}
}

// History returns the acting student's own results, newest first.
func (s *ResultService) History(ctx context.Context, actor models.Actor) ([]models.ResultDetail, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access required")
	}
	results, err := s.results.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// Analytics aggregates the acting student's performance.
func (s *ResultService) Analytics(ctx context.Context, actor models.Actor) (*models.StudentAnalytics, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access required")
	}

	total, avg, best, worst, err := s.results.OverallStats(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate results")
	}
	bySubject, err := s.results.SubjectStats(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate subject results")
	}

	var weakAreas []models.SubjectPerformance
	for _, perf := range bySubject {
		if perf.AverageScore < s.weakThreshold {
			weakAreas = append(weakAreas, perf)
		}
	}

	return &models.StudentAnalytics{
		TotalQuizzes: total,
		AverageScore: avg,
		BestScore:    best,
		WorstScore:   worst,
		BySubject:    bySubject,
		WeakAreas:    weakAreas,
	}, nil
}

// ExportFormat selects the export rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Export renders a quiz's results as CSV or PDF for the quiz creator or an
// admin. Returns the content bytes and a suggested filename.
func (s *ResultService) Export(ctx context.Context, actor models.Actor, quizID string, format ExportFormat) ([]byte, string, error) {
	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if actor.Role != models.RoleAdmin && quiz.CreatorID != actor.ID {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "only the quiz creator can export its results")
	}

	results, err := s.results.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Score", "Total", "Percentage", "Submitted At"},
	}
	for _, r := range results {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":      r.StudentName,
			"Score":        fmt.Sprintf("%d", r.Score),
			"Total":        fmt.Sprintf("%d", r.TotalQuestions),
			"Percentage":   fmt.Sprintf("%.1f%%", r.Percentage()),
			"Submitted At": r.SubmittedAt.UTC().Format("2006-01-02 15:04"),
		})
	}

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return content, fmt.Sprintf("quiz-results-%s.csv", quizID), nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Results: %s", quiz.Title))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return content, fmt.Sprintf("quiz-results-%s.pdf", quizID), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown export format, expected csv or pdf")
	}
}
