package types

import (
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/samber/lo"
)

// ProviderSubscriptionStatus is the closed set of billing provider subscription states
// the entitlement state machine understands. Provider specific statuses are mapped into
// this enum at the integration boundary.
type ProviderSubscriptionStatus string

const (
	ProviderSubscriptionStatusActive   ProviderSubscriptionStatus = "active"
	ProviderSubscriptionStatusPastDue  ProviderSubscriptionStatus = "past_due"
	ProviderSubscriptionStatusCanceled ProviderSubscriptionStatus = "canceled"
	ProviderSubscriptionStatusUnpaid   ProviderSubscriptionStatus = "unpaid"
)

func (s ProviderSubscriptionStatus) String() string {
	return string(s)
}

func (s ProviderSubscriptionStatus) Validate() error {
	allowed := []ProviderSubscriptionStatus{
		ProviderSubscriptionStatusActive,
		ProviderSubscriptionStatusPastDue,
		ProviderSubscriptionStatusCanceled,
		ProviderSubscriptionStatusUnpaid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid provider subscription status").
			WithHint("Billing provider returned an unsupported subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
