package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agriquest/agriquest-api/internal/service"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
	"github.com/agriquest/agriquest-api/pkg/response"
)

// WeaknessHandler handles weakness tracking endpoints.
type WeaknessHandler struct {
	service *service.WeaknessService
}

// NewWeaknessHandler constructs a weakness handler.
func NewWeaknessHandler(svc *service.WeaknessService) *WeaknessHandler {
	return &WeaknessHandler{service: svc}
}

// Report godoc
// @Summary Report a learning weakness
// @Tags Weaknesses
// @Accept json
// @Produce json
// @Param payload body service.WeaknessRequest true "Weakness payload"
// @Success 201 {object} response.Envelope
// @Router /weaknesses [post]
func (h *WeaknessHandler) Report(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.WeaknessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	weakness, err := h.service.Report(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, weakness)
}

// Mine godoc
// @Summary List the caller's weaknesses
// @Tags Weaknesses
// @Produce json
// @Param subjectId query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /weaknesses/mine [get]
func (h *WeaknessHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	weaknesses, err := h.service.ListOwn(c.Request.Context(), actor, c.Query("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weaknesses, nil)
}

// BySubject godoc
// @Summary List weaknesses reported on a subject
// @Tags Weaknesses
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/weaknesses [get]
func (h *WeaknessHandler) BySubject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	weaknesses, err := h.service.ListForSubject(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weaknesses, nil)
}

// Stats godoc
// @Summary Aggregate weakness statistics
// @Tags Weaknesses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /weaknesses/stats [get]
func (h *WeaknessHandler) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Delete godoc
// @Summary Delete one of the caller's weaknesses
// @Tags Weaknesses
// @Produce json
// @Param id path string true "Weakness ID"
// @Success 204
// @Router /weaknesses/{id} [delete]
func (h *WeaknessHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Types godoc
// @Summary List recognised weakness types
// @Tags Weaknesses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /weaknesses/types [get]
func (h *WeaknessHandler) Types(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Types(), nil)
}
