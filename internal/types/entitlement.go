package types

import (
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/samber/lo"
)

// Tier is the subscription product level, independent of its current status
type Tier string

const (
	TierNone      Tier = "NONE"
	TierTier1     Tier = "TIER1"
	TierTier2     Tier = "TIER2"
	TierFreeTrial Tier = "FREE_TRIAL"
)

func (t Tier) String() string {
	return string(t)
}

// IsEntitled reports whether the tier can grant access to gated content at all
func (t Tier) IsEntitled() bool {
	return lo.Contains([]Tier{TierTier1, TierTier2, TierFreeTrial}, t)
}

// IsPaid reports whether the tier is backed by a paid subscription
func (t Tier) IsPaid() bool {
	return t == TierTier1 || t == TierTier2
}

func (t Tier) Validate() error {
	allowed := []Tier{TierNone, TierTier1, TierTier2, TierFreeTrial}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid tier").
			WithHint("Invalid subscription tier").
			WithReportableDetails(map[string]any{
				"tier":          t,
				"allowed_tiers": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// EntitlementStatus is the lifecycle status of an entitlement record.
// CANCELLED means the record will not renew but stays usable until its end date.
type EntitlementStatus string

const (
	EntitlementStatusActive    EntitlementStatus = "ACTIVE"
	EntitlementStatusCancelled EntitlementStatus = "CANCELLED"
	EntitlementStatusExpired   EntitlementStatus = "EXPIRED"
)

func (s EntitlementStatus) String() string {
	return string(s)
}

func (s EntitlementStatus) Validate() error {
	// empty status is the undefined state of a fresh NONE record
	if s == "" {
		return nil
	}
	allowed := []EntitlementStatus{
		EntitlementStatusActive,
		EntitlementStatusCancelled,
		EntitlementStatusExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid entitlement status").
			WithHint("Invalid entitlement status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AccessState is the classification computed by the entitlement evaluator
type AccessState string

const (
	AccessStateNoAccess        AccessState = "no_access"
	AccessStateActive          AccessState = "active"
	AccessStateActiveCancelled AccessState = "active_cancelled"
	AccessStateGracePeriod     AccessState = "grace_period"
	AccessStateExpired         AccessState = "expired"
)

func (a AccessState) String() string {
	return string(a)
}

// Granted reports whether the state allows access to gated content
func (a AccessState) Granted() bool {
	switch a {
	case AccessStateActive, AccessStateActiveCancelled, AccessStateGracePeriod:
		return true
	default:
		return false
	}
}

// HistoryReason is the closed set of reason codes recorded on history entries
type HistoryReason string

const (
	HistoryReasonTrialActivated        HistoryReason = "trial_activated"
	HistoryReasonSubscriptionActivated HistoryReason = "subscription_activated"
	HistoryReasonRenewalConfirmed      HistoryReason = "renewal_confirmed"
	HistoryReasonGracePeriodExpired    HistoryReason = "grace_period_expired"
	HistoryReasonProviderCanceled      HistoryReason = "provider_canceled"
	HistoryReasonProviderUnpaid        HistoryReason = "provider_unpaid"
	HistoryReasonCancelledByUser       HistoryReason = "cancelled_by_user"
	HistoryReasonTrialEnded            HistoryReason = "trial_ended"
)

func (r HistoryReason) String() string {
	return string(r)
}

// Description is the human readable note stored next to the reason code
func (r HistoryReason) Description() string {
	switch r {
	case HistoryReasonTrialActivated:
		return "trial activated"
	case HistoryReasonSubscriptionActivated:
		return "subscription activated"
	case HistoryReasonRenewalConfirmed:
		return "renewal confirmed"
	case HistoryReasonGracePeriodExpired:
		return "grace period expired"
	case HistoryReasonProviderCanceled:
		return "subscription canceled by provider"
	case HistoryReasonProviderUnpaid:
		return "subscription unpaid at provider"
	case HistoryReasonCancelledByUser:
		return "cancelled by user"
	case HistoryReasonTrialEnded:
		return "trial ended"
	default:
		return string(r)
	}
}

// RenewalOutcome is the result of a manual renewal check
type RenewalOutcome string

const (
	RenewalOutcomeRenewed       RenewalOutcome = "renewed"
	RenewalOutcomeStillValid    RenewalOutcome = "still_valid"
	RenewalOutcomeExpired       RenewalOutcome = "expired"
	RenewalOutcomePaymentFailed RenewalOutcome = "payment_failed"
)

// TrialOutcome is the result of a trial activation request
type TrialOutcome string

const (
	TrialOutcomeActivated         TrialOutcome = "activated"
	TrialOutcomeAlreadyUsed       TrialOutcome = "already_used"
	TrialOutcomeAlreadySubscribed TrialOutcome = "already_subscribed"
)
