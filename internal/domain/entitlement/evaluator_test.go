package entitlement

import (
	"testing"
	"time"

	"github.com/flexprice/membership/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

var (
	testPolicy = Policy{
		GracePeriod:     7 * 24 * time.Hour,
		TrialDuration:   7 * 24 * time.Hour,
		LookaheadWindow: 3 * 24 * time.Hour,
	}
	periodEnd = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

func record(tier types.Tier, status types.EntitlementStatus, end *time.Time) *Record {
	return &Record{
		AccountID: "acc_1",
		Tier:      tier,
		Status:    status,
		StartDate: periodEnd.AddDate(0, -1, 0),
		EndDate:   end,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
		now  time.Time
		want types.AccessState
	}{
		{
			name: "nil record",
			rec:  nil,
			now:  periodEnd,
			want: types.AccessStateNoAccess,
		},
		{
			name: "none tier",
			rec:  NewRecord("acc_1", periodEnd),
			now:  periodEnd,
			want: types.AccessStateNoAccess,
		},
		{
			name: "none tier with a leftover status",
			rec:  record(types.TierNone, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(-time.Hour),
			want: types.AccessStateNoAccess,
		},
		{
			name: "unknown tier",
			rec:  record(types.Tier("GOLD"), types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(-time.Hour),
			want: types.AccessStateNoAccess,
		},
		{
			name: "active before end",
			rec:  record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(-24 * time.Hour),
			want: types.AccessStateActive,
		},
		{
			name: "active exactly at end",
			rec:  record(types.TierTier2, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd,
			want: types.AccessStateActive,
		},
		{
			name: "active just after end is in grace",
			rec:  record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(time.Second),
			want: types.AccessStateGracePeriod,
		},
		{
			name: "grace exactly at deadline",
			rec:  record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(testPolicy.GracePeriod),
			want: types.AccessStateGracePeriod,
		},
		{
			name: "expired after grace deadline",
			rec:  record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(testPolicy.GracePeriod + time.Second),
			want: types.AccessStateExpired,
		},
		{
			name: "cancelled before end",
			rec:  record(types.TierTier1, types.EntitlementStatusCancelled, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(-time.Hour),
			want: types.AccessStateActiveCancelled,
		},
		{
			name: "cancelled gets no grace",
			rec:  record(types.TierTier1, types.EntitlementStatusCancelled, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(time.Second),
			want: types.AccessStateExpired,
		},
		{
			name: "expired status wins over a future end",
			rec:  record(types.TierTier2, types.EntitlementStatusExpired, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(-48 * time.Hour),
			want: types.AccessStateExpired,
		},
		{
			name: "trial within its period",
			rec:  record(types.TierFreeTrial, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(-time.Hour),
			want: types.AccessStateActive,
		},
		{
			name: "entitled tier without end date",
			rec:  record(types.TierTier1, types.EntitlementStatusActive, nil),
			now:  periodEnd,
			want: types.AccessStateActive,
		},
		{
			name: "entitled tier without status",
			rec:  record(types.TierTier1, "", lo.ToPtr(periodEnd)),
			now:  periodEnd.Add(-time.Hour),
			want: types.AccessStateExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.rec, tt.now, testPolicy))
		})
	}
}

func TestEvaluateZeroGrace(t *testing.T) {
	policy := testPolicy
	policy.GracePeriod = 0

	rec := record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd))
	assert.Equal(t, types.AccessStateActive, Evaluate(rec, periodEnd, policy))
	assert.Equal(t, types.AccessStateExpired, Evaluate(rec, periodEnd.Add(time.Nanosecond), policy))
}

// once a record stops granting access, later instants never grant it again
func TestEvaluateIsMonotonic(t *testing.T) {
	records := []*Record{
		record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
		record(types.TierTier2, types.EntitlementStatusCancelled, lo.ToPtr(periodEnd)),
		record(types.TierFreeTrial, types.EntitlementStatusActive, lo.ToPtr(periodEnd)),
	}

	for _, rec := range records {
		denied := false
		for now := periodEnd.Add(-48 * time.Hour); now.Before(periodEnd.Add(10 * 24 * time.Hour)); now = now.Add(time.Hour) {
			granted := Evaluate(rec, now, testPolicy).Granted()
			if denied {
				assert.False(t, granted, "tier %s status %s granted again at %s", rec.Tier, rec.Status, now)
			}
			if !granted {
				denied = true
			}
		}
		assert.True(t, denied)
	}
}

func TestRemaining(t *testing.T) {
	active := record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd))

	assert.Equal(t, 12*time.Hour, Remaining(active, periodEnd.Add(-12*time.Hour), testPolicy))
	assert.Equal(t, testPolicy.GracePeriod-time.Hour, Remaining(active, periodEnd.Add(time.Hour), testPolicy))
	assert.Zero(t, Remaining(active, periodEnd.Add(testPolicy.GracePeriod+time.Hour), testPolicy))
	assert.Zero(t, Remaining(nil, periodEnd, testPolicy))
	assert.Zero(t, Remaining(record(types.TierTier1, types.EntitlementStatusActive, nil), periodEnd, testPolicy))
}

func TestDaysRemaining(t *testing.T) {
	active := record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd))

	assert.Equal(t, 12, DaysRemaining(active, periodEnd.AddDate(0, 0, -12), testPolicy))
	assert.Equal(t, 1, DaysRemaining(active, periodEnd.Add(-time.Minute), testPolicy))
	assert.Equal(t, 0, DaysRemaining(active, periodEnd, testPolicy))
	assert.Equal(t, 7, DaysRemaining(active, periodEnd.Add(time.Second), testPolicy))

	expired := record(types.TierTier1, types.EntitlementStatusExpired, lo.ToPtr(periodEnd))
	assert.Equal(t, 0, DaysRemaining(expired, periodEnd.AddDate(0, 0, -5), testPolicy))
}
