package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agriquest/agriquest-api/internal/service"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
	"github.com/agriquest/agriquest-api/pkg/response"
)

// DashboardHandler serves the admin overview endpoint.
type DashboardHandler struct {
	users         *service.UserService
	notifications *service.NotificationService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(users *service.UserService, notifications *service.NotificationService) *DashboardHandler {
	return &DashboardHandler{users: users, notifications: notifications}
}

// Overview godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	counts, err := h.users.RoleCounts(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	recent, err := h.notifications.Recent(c.Request.Context(), actor.ID, 5)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"role_counts":          counts,
		"recent_notifications": recent,
	}, nil)
}
