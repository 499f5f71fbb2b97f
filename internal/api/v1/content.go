package v1

import (
	"net/http"

	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

// ContentHandler serves the gated member and admin areas. The gate middleware in front of
// each route has already admitted the caller.
type ContentHandler struct {
	log *logger.Logger
}

func NewContentHandler(log *logger.Logger) *ContentHandler {
	return &ContentHandler{log: log}
}

// @Summary Member content
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param path path string true "Content path"
// @Success 200 {object} map[string]string
// @Failure 402 {object} map[string]any
// @Router /content/{path} [get]
func (h *ContentHandler) GetContent(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	c.JSON(http.StatusOK, gin.H{
		"path":       c.Param("path"),
		"account_id": principal.AccountID,
	})
}

// @Summary Admin area
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param path path string true "Admin path"
// @Success 200 {object} map[string]string
// @Router /admin/{path} [get]
func (h *ContentHandler) GetAdmin(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	h.log.Debugw("admin area accessed",
		"account_id", principal.AccountID,
		"path", c.Param("path"),
	)
	c.JSON(http.StatusOK, gin.H{
		"path":       c.Param("path"),
		"account_id": principal.AccountID,
	})
}
