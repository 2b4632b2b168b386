package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agriquest/agriquest-api/internal/service"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
	"github.com/agriquest/agriquest-api/pkg/response"
)

// ResultHandler handles result history, analytics and export endpoints.
type ResultHandler struct {
	service *service.ResultService
}

// NewResultHandler constructs a result handler.
func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// History godoc
// @Summary List the caller's quiz results
// @Tags Results
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /results/mine [get]
func (h *ResultHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	results, err := h.service.History(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Analytics godoc
// @Summary Per-subject performance analytics for the caller
// @Tags Results
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /results/analytics [get]
func (h *ResultHandler) Analytics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	analytics, err := h.service.Analytics(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// Export godoc
// @Summary Export a quiz's results as CSV or PDF
// @Tags Results
// @Produce octet-stream
// @Param id path string true "Quiz ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /quizzes/{id}/results/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	content, filename, err := h.service.Export(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	mimeType := "text/csv"
	if format == service.ExportFormatPDF {
		mimeType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mimeType, content)
}
