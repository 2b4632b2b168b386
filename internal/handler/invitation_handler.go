package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agriquest/agriquest-api/internal/service"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
	"github.com/agriquest/agriquest-api/pkg/response"
)

// InvitationHandler handles teacher invitation endpoints.
type InvitationHandler struct {
	service *service.InvitationService
}

// NewInvitationHandler constructs an invitation handler.
func NewInvitationHandler(svc *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{service: svc}
}

// Invite godoc
// @Summary Invite a teacher to a subject
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body service.InviteRequest true "Invitation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invitations [post]
func (h *InvitationHandler) Invite(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invitation, err := h.service.Invite(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invitation)
}

// Respond godoc
// @Summary Accept or reject a pending invitation
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body service.RespondRequest true "Response payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invitations/respond [post]
func (h *InvitationHandler) Respond(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invitation, err := h.service.Respond(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitation, nil)
}

// Pending godoc
// @Summary List the caller's pending invitations
// @Tags Invitations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /invitations/pending [get]
func (h *InvitationHandler) Pending(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	invitations, err := h.service.PendingForTeacher(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitations, nil)
}

// BySubject godoc
// @Summary List invitations for a subject
// @Tags Invitations
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/invitations [get]
func (h *InvitationHandler) BySubject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	invitations, err := h.service.ListBySubject(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitations, nil)
}

// List godoc
// @Summary List all invitations
// @Tags Invitations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *InvitationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	invitations, err := h.service.ListAll(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitations, nil)
}
