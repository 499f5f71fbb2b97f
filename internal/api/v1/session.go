package v1

import (
	"net/http"

	"github.com/flexprice/membership/internal/api/dto"
	"github.com/flexprice/membership/internal/auth"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/rest/middleware"
	"github.com/flexprice/membership/internal/service"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	entitlements service.EntitlementService
	sessions     *auth.SessionManager
	log          *logger.Logger
}

func NewSessionHandler(entitlements service.EntitlementService, sessions *auth.SessionManager, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		entitlements: entitlements,
		sessions:     sessions,
		log:          log,
	}
}

// @Summary Refresh the session
// @Description Re-issues the caller's session with its current role and entitlement snapshot
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Router /session/refresh [post]
func (h *SessionHandler) Refresh(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.Authenticated {
		c.Error(ierr.NewError("session required").
			WithHint("Please log in to continue").
			Mark(ierr.ErrPermissionDenied))
		return
	}

	ctx := c.Request.Context()
	snapshot, err := h.entitlements.RefreshSnapshot(ctx, principal.AccountID)
	if err != nil {
		c.Error(err)
		return
	}

	role, err := h.entitlements.GetRole(ctx, principal.AccountID)
	if err != nil {
		if !ierr.IsNotFound(err) {
			c.Error(err)
			return
		}
		role = principal.Role
	}

	token, expiresAt, err := h.sessions.Issue(principal.AccountID, role, snapshot)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		AccountID: principal.AccountID,
		Role:      role,
		Snapshot:  snapshot,
	})
}
