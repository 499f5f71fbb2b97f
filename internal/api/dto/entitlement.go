package dto

import (
	"strings"
	"time"

	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/types"
	"github.com/flexprice/membership/internal/validator"
)

// InitializeAccountRequest creates the account user and its NONE entitlement
type InitializeAccountRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

func (r *InitializeAccountRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ActivateSubscriptionRequest completes a checkout against a provider subscription
type ActivateSubscriptionRequest struct {
	ExternalRef string `json:"external_ref" validate:"required"`
}

func (r *ActivateSubscriptionRequest) Validate() error {
	r.ExternalRef = strings.TrimSpace(r.ExternalRef)
	return validator.ValidateRequest(r)
}

type ActivateTrialRequest struct {
	ReferralCode string `json:"referral_code,omitempty" validate:"omitempty,max=64"`
}

func (r *ActivateTrialRequest) Validate() error {
	r.ReferralCode = strings.TrimSpace(r.ReferralCode)
	return validator.ValidateRequest(r)
}

// EntitlementResponse is the record together with its evaluation at response time
type EntitlementResponse struct {
	*entitlement.Record

	AccessState   types.AccessState `json:"access_state"`
	Granted       bool              `json:"granted"`
	DaysRemaining int               `json:"days_remaining"`
}

func NewEntitlementResponse(rec *entitlement.Record, now time.Time, policy entitlement.Policy) *EntitlementResponse {
	state := entitlement.Evaluate(rec, now, policy)
	return &EntitlementResponse{
		Record:        rec,
		AccessState:   state,
		Granted:       state.Granted(),
		DaysRemaining: entitlement.DaysRemaining(rec, now, policy),
	}
}

type TrialResponse struct {
	Outcome     types.TrialOutcome   `json:"outcome"`
	Entitlement *EntitlementResponse `json:"entitlement"`
}

type RenewalCheckResponse struct {
	Outcome       types.RenewalOutcome `json:"outcome"`
	DaysRemaining int                  `json:"days_remaining,omitempty"`
	Entitlement   *EntitlementResponse `json:"entitlement,omitempty"`
}

// SweepSummary reports a reconciliation sweep. Every selected record lands in exactly one of
// renewed, expired, unchanged, skipped or errored; anomalies is a subset of errored.
type SweepSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Renewed    int       `json:"renewed"`
	Expired    int       `json:"expired"`
	Unchanged  int       `json:"unchanged"`
	Skipped    int       `json:"skipped"`
	Errored    int       `json:"errored"`
	Anomalies  int       `json:"anomalies"`
}
