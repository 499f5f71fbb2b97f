package v1

import (
	"net/http"

	"github.com/flexprice/membership/internal/api/dto"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/service"
	"github.com/gin-gonic/gin"
)

type EntitlementHandler struct {
	service    service.EntitlementService
	trial      service.TrialService
	reconciler service.ReconcilerService
	log        *logger.Logger
}

func NewEntitlementHandler(
	service service.EntitlementService,
	trial service.TrialService,
	reconciler service.ReconcilerService,
	log *logger.Logger,
) *EntitlementHandler {
	return &EntitlementHandler{
		service:    service,
		trial:      trial,
		reconciler: reconciler,
		log:        log,
	}
}

// @Summary Initialize an account
// @Description Creates the account user and its empty entitlement. Safe to call more than once.
// @Tags Entitlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "Account ID"
// @Param request body dto.InitializeAccountRequest false "Account details"
// @Success 200 {object} dto.EntitlementResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /entitlements/{account_id}/init [post]
func (h *EntitlementHandler) InitializeAccount(c *gin.Context) {
	var req dto.InitializeAccountRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.service.InitializeAccount(c.Request.Context(), c.Param("account_id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get an entitlement
// @Description Returns the entitlement record with its current access state
// @Tags Entitlements
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "Account ID"
// @Success 200 {object} dto.EntitlementResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /entitlements/{account_id} [get]
func (h *EntitlementHandler) GetEntitlement(c *gin.Context) {
	resp, err := h.service.GetEntitlement(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List entitlement history
// @Tags Entitlements
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "Account ID"
// @Success 200 {object} dto.ListResponse[entitlement.HistoryEntry]
// @Router /entitlements/{account_id}/history [get]
func (h *EntitlementHandler) ListHistory(c *gin.Context) {
	resp, err := h.service.ListHistory(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Activate the free trial
// @Description Grants the one-time free trial. Repeated calls report already_used.
// @Tags Entitlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "Account ID"
// @Param request body dto.ActivateTrialRequest false "Referral code"
// @Success 200 {object} dto.TrialResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /entitlements/{account_id}/trial [post]
func (h *EntitlementHandler) ActivateTrial(c *gin.Context) {
	var req dto.ActivateTrialRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.trial.ActivateTrial(c.Request.Context(), c.Param("account_id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Complete a checkout
// @Description Activates a paid tier from a provider subscription
// @Tags Entitlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "Account ID"
// @Param request body dto.ActivateSubscriptionRequest true "Provider subscription"
// @Success 200 {object} dto.EntitlementResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /entitlements/{account_id}/activate [post]
func (h *EntitlementHandler) ActivateSubscription(c *gin.Context) {
	var req dto.ActivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ActivateSubscription(c.Request.Context(), c.Param("account_id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a subscription
// @Description Stops renewal; access continues until the end of the current period
// @Tags Entitlements
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "Account ID"
// @Success 200 {object} dto.EntitlementResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /entitlements/{account_id}/cancel [post]
func (h *EntitlementHandler) Cancel(c *gin.Context) {
	resp, err := h.service.Cancel(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Check renewal
// @Description Reconciles the account with the billing provider now
// @Tags Entitlements
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "Account ID"
// @Success 200 {object} dto.RenewalCheckResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /entitlements/{account_id}/check-renewal [post]
func (h *EntitlementHandler) CheckRenewal(c *gin.Context) {
	resp, err := h.reconciler.CheckRenewal(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// bindOptionalJSON binds the body when there is one. It reports false after recording a bind error.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return false
	}
	return true
}
