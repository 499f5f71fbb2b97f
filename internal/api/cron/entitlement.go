package cron

import (
	"net/http"

	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/service"
	"github.com/gin-gonic/gin"
)

// EntitlementHandler runs entitlement jobs triggered by an external scheduler
type EntitlementHandler struct {
	reconciler service.ReconcilerService
	logger     *logger.Logger
}

func NewEntitlementHandler(reconciler service.ReconcilerService, logger *logger.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// SweepEntitlements reconciles every record near or past its end date
func (h *EntitlementHandler) SweepEntitlements(c *gin.Context) {
	h.logger.Infow("starting entitlement sweep cron job")

	summary, err := h.reconciler.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to sweep entitlements", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed entitlement sweep cron job",
		"processed", summary.Processed,
		"errored", summary.Errored,
	)
	c.JSON(http.StatusOK, summary)
}
