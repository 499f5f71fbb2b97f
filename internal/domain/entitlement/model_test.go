package entitlement

import (
	"testing"

	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordClone(t *testing.T) {
	rec := record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd))
	rec.ExternalRef = lo.ToPtr("sub_1")
	rec.LastReconciledAt = lo.ToPtr(periodEnd)

	c := rec.Clone()
	*c.EndDate = periodEnd.AddDate(0, 1, 0)
	*c.ExternalRef = "sub_2"
	*c.LastReconciledAt = periodEnd.AddDate(0, 0, 1)

	assert.Equal(t, periodEnd, *rec.EndDate)
	assert.Equal(t, "sub_1", *rec.ExternalRef)
	assert.Equal(t, periodEnd, *rec.LastReconciledAt)
	assert.Nil(t, (*Record)(nil).Clone())
}

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, NewRecord("acc_1", periodEnd).Validate())
	assert.NoError(t, record(types.TierTier1, types.EntitlementStatusActive, lo.ToPtr(periodEnd)).Validate())

	missingEnd := record(types.TierTier1, types.EntitlementStatusActive, nil)
	assert.True(t, ierr.IsValidation(missingEnd.Validate()))

	badTier := record(types.Tier("GOLD"), types.EntitlementStatusActive, lo.ToPtr(periodEnd))
	assert.True(t, ierr.IsValidation(badTier.Validate()))

	badStatus := record(types.TierTier1, types.EntitlementStatus("PAUSED"), lo.ToPtr(periodEnd))
	assert.True(t, ierr.IsValidation(badStatus.Validate()))

	noAccount := NewRecord("", periodEnd)
	assert.True(t, ierr.IsValidation(noAccount.Validate()))
}

func TestHasExternalRef(t *testing.T) {
	rec := NewRecord("acc_1", periodEnd)
	assert.False(t, rec.HasExternalRef())

	rec.ExternalRef = lo.ToPtr("")
	assert.False(t, rec.HasExternalRef())

	rec.ExternalRef = lo.ToPtr("sub_1")
	assert.True(t, rec.HasExternalRef())
}

func TestSnapshot(t *testing.T) {
	rec := record(types.TierTier2, types.EntitlementStatusCancelled, lo.ToPtr(periodEnd))
	snap := rec.Snapshot()
	require.True(t, snap.IsComplete())

	rebuilt := snap.Record("acc_1")
	assert.Equal(t, types.TierTier2, rebuilt.Tier)
	assert.Equal(t, types.EntitlementStatusCancelled, rebuilt.Status)
	assert.Equal(t, periodEnd, *rebuilt.EndDate)
	assert.Equal(t,
		Evaluate(rec, periodEnd.AddDate(0, 0, -1), testPolicy),
		Evaluate(rebuilt, periodEnd.AddDate(0, 0, -1), testPolicy),
	)

	partial := &Snapshot{Tier: lo.ToPtr(types.TierTier1)}
	assert.False(t, partial.IsComplete())
	assert.Nil(t, partial.Record("acc_1"))
	assert.False(t, (*Snapshot)(nil).IsComplete())
}

func TestNewHistoryEntry(t *testing.T) {
	rec := record(types.TierTier1, types.EntitlementStatusExpired, lo.ToPtr(periodEnd))
	entry := NewHistoryEntry(rec, types.HistoryReasonGracePeriodExpired, periodEnd)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "acc_1", entry.AccountID)
	assert.Equal(t, types.TierTier1, entry.Tier)
	assert.Equal(t, types.EntitlementStatusExpired, entry.Status)
	assert.Equal(t, "grace period expired", entry.Notes)
	assert.NotNil(t, entry.Metadata)
	assert.False(t, entry.Amount.Valid)
}
