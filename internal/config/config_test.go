package config

import (
	"testing"
	"time"

	"github.com/flexprice/membership/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, GetDefaultConfig().Validate())
}

func TestNewConfigReadsFileAndEnv(t *testing.T) {
	t.Setenv("MEMBERSHIP_ENTITLEMENT_SWEEP_CONCURRENCY", "8")
	t.Setenv("MEMBERSHIP_ENTITLEMENT_GRACE_PERIOD", "48h")
	t.Setenv("MEMBERSHIP_AUTH_CRON_KEY", "cron-secret")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Entitlement.SweepConcurrency)
	assert.Equal(t, 48*time.Hour, cfg.Entitlement.GracePeriod)
	assert.Equal(t, "cron-secret", cfg.Auth.CronKey)

	tier, ok := cfg.Entitlement.TierForPrice("price_premium_monthly")
	require.True(t, ok)
	assert.Equal(t, types.TierTier2, tier)
}

func TestConfigRejectsUnknownMode(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Deployment.Mode = "lambda"
	assert.Error(t, cfg.Validate())
}

func TestConfigRejectsUnknownPubSub(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Webhook.PubSub = "kafka"
	assert.Error(t, cfg.Validate())

	cfg.Webhook.PubSub = ""
	assert.NoError(t, cfg.Validate())
}

func TestEntitlementConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []PriceTier
		wantErr bool
	}{
		{
			name:  "paid tiers",
			tiers: []PriceTier{{PriceID: "price_a", Tier: types.TierTier1}, {PriceID: "price_b", Tier: types.TierTier2}},
		},
		{
			name:    "trial is not sellable",
			tiers:   []PriceTier{{PriceID: "price_a", Tier: types.TierFreeTrial}},
			wantErr: true,
		},
		{
			name:    "duplicate price",
			tiers:   []PriceTier{{PriceID: "price_a", Tier: types.TierTier1}, {PriceID: "price_a", Tier: types.TierTier2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Entitlement.PriceTiers = tt.tiers
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTierForPriceUnknown(t *testing.T) {
	tier, ok := DefaultEntitlementConfig().TierForPrice("price_missing")
	assert.False(t, ok)
	assert.Equal(t, types.TierNone, tier)
}
