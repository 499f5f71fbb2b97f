package entitlement

import (
	"time"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/types"
)

// Policy holds the time windows of the entitlement state machine
type Policy struct {
	GracePeriod     time.Duration
	TrialDuration   time.Duration
	LookaheadWindow time.Duration
}

func DefaultPolicy() Policy {
	return NewPolicy(config.DefaultEntitlementConfig())
}

func NewPolicy(cfg config.EntitlementConfig) Policy {
	return Policy{
		GracePeriod:     cfg.GracePeriod,
		TrialDuration:   cfg.TrialDuration,
		LookaheadWindow: cfg.LookaheadWindow,
	}
}

// GraceDeadline is the last instant a lapsed ACTIVE record still grants access
func (p Policy) GraceDeadline(end time.Time) time.Time {
	return end.Add(p.GracePeriod)
}

// Evaluate classifies rec at now. It performs no I/O and accepts any input, including nil.
func Evaluate(rec *Record, now time.Time, policy Policy) types.AccessState {
	if rec == nil || rec.Tier == types.TierNone {
		return types.AccessStateNoAccess
	}
	if !rec.Tier.IsEntitled() {
		return types.AccessStateNoAccess
	}

	withinPeriod := rec.EndDate == nil || !now.After(*rec.EndDate)

	switch rec.Status {
	case types.EntitlementStatusActive:
		if withinPeriod {
			return types.AccessStateActive
		}
		if !now.After(policy.GraceDeadline(*rec.EndDate)) {
			return types.AccessStateGracePeriod
		}
	case types.EntitlementStatusCancelled:
		if withinPeriod {
			return types.AccessStateActiveCancelled
		}
	}

	return types.AccessStateExpired
}

// Remaining is how long the current classification keeps granting access.
// It is zero for denied states and for records without an end date.
func Remaining(rec *Record, now time.Time, policy Policy) time.Duration {
	state := Evaluate(rec, now, policy)
	if !state.Granted() || rec.EndDate == nil {
		return 0
	}

	until := *rec.EndDate
	if state == types.AccessStateGracePeriod {
		until = policy.GraceDeadline(until)
	}
	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// DaysRemaining rounds Remaining up to whole days
func DaysRemaining(rec *Record, now time.Time, policy Policy) int {
	d := Remaining(rec, now, policy)
	if d <= 0 {
		return 0
	}
	day := 24 * time.Hour
	return int((d + day - 1) / day)
}
