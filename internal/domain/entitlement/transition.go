package entitlement

import (
	"fmt"

	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
)

// TransitionKind names who is moving the record
type TransitionKind string

const (
	// TransitionAutomatic covers reconciler and trial driven moves
	TransitionAutomatic TransitionKind = "automatic"
	// TransitionCheckout is a completed checkout, the only way out of NONE or EXPIRED into a paid tier
	TransitionCheckout TransitionKind = "checkout"
	// TransitionUser is an explicit action taken by the account holder
	TransitionUser TransitionKind = "user"
)

// CanTransition checks a move from one tier/status pair to another against the state machine
//
//	NONE -> {FREE_TRIAL, TIER1, TIER2}(ACTIVE) -> CANCELLED -> EXPIRED
//	ACTIVE -> EXPIRED, ACTIVE -> ACTIVE (renewal)
func CanTransition(from, to *Record, kind TransitionKind) error {
	if err := canTransition(from, to, kind); err != nil {
		return ierr.WithError(err).
			WithHint("This entitlement change is not allowed").
			WithReportableDetails(map[string]any{
				"from_tier":   from.Tier,
				"from_status": from.Status,
				"to_tier":     to.Tier,
				"to_status":   to.Status,
				"kind":        kind,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

func canTransition(from, to *Record, kind TransitionKind) error {
	switch kind {
	case TransitionCheckout:
		if !to.Tier.IsPaid() || to.Status != types.EntitlementStatusActive {
			return ierr.NewError("checkout must produce an active paid tier").Error()
		}
		return nil

	case TransitionUser:
		if from.Status == types.EntitlementStatusActive && to.Status == types.EntitlementStatusCancelled && from.Tier == to.Tier {
			return nil
		}
		return ierr.NewError("only an active entitlement can be cancelled").Error()

	case TransitionAutomatic:
		switch {
		case to.Tier == types.TierFreeTrial && to.Status == types.EntitlementStatusActive && from.Tier != types.TierFreeTrial:
			// eligibility is decided by FreeTrialUsed, a lapsed plan can still start its one trial
			return nil
		case from.Status == types.EntitlementStatusActive && to.Status == types.EntitlementStatusActive:
			return nil
		case from.Status == types.EntitlementStatusActive && to.Status == types.EntitlementStatusExpired:
			return nil
		case from.Status == types.EntitlementStatusCancelled && to.Status == types.EntitlementStatusExpired:
			return nil
		case from.Status == types.EntitlementStatusCancelled && to.Status == types.EntitlementStatusCancelled:
			// provider period refresh of a cancelled subscription
			return nil
		}
		return ierr.NewError("automatic transition out of a terminal state").Error()
	}

	return ierr.NewError(fmt.Sprintf("unknown transition kind %s", kind)).Error()
}
