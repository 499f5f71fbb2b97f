package config

import (
	"fmt"
	"time"

	"github.com/flexprice/membership/internal/types"
	"github.com/samber/lo"
)

// EntitlementConfig holds the tunables of the entitlement state machine and its reconciler
type EntitlementConfig struct {
	GracePeriod             time.Duration `mapstructure:"grace_period" validate:"gte=0"`
	TrialDuration           time.Duration `mapstructure:"trial_duration" validate:"gt=0"`
	LookaheadWindow         time.Duration `mapstructure:"lookahead_window" validate:"gte=0"`
	ProviderTimeout         time.Duration `mapstructure:"provider_timeout" validate:"gt=0"`
	MinReconcileInterval    time.Duration `mapstructure:"min_reconcile_interval" validate:"gte=0"`
	SweepConcurrency        int           `mapstructure:"sweep_concurrency" validate:"gte=1"`
	SweepRatePerSecond      float64       `mapstructure:"sweep_rate_per_second" validate:"gt=0"`
	SnapshotRefreshInterval time.Duration `mapstructure:"snapshot_refresh_interval" validate:"gte=0"`
	ConflictRetryDelay      time.Duration `mapstructure:"conflict_retry_delay" validate:"gte=0"`
	// PriceTiers maps provider price ids to the tier they grant.
	// Kept as a list because viper lowercases map keys.
	PriceTiers []PriceTier `mapstructure:"price_tiers" validate:"dive"`
}

type PriceTier struct {
	PriceID string     `mapstructure:"price_id" validate:"required"`
	Tier    types.Tier `mapstructure:"tier" validate:"required"`
}

func DefaultEntitlementConfig() EntitlementConfig {
	return EntitlementConfig{
		GracePeriod:             7 * 24 * time.Hour,
		TrialDuration:           7 * 24 * time.Hour,
		LookaheadWindow:         3 * 24 * time.Hour,
		ProviderTimeout:         10 * time.Second,
		MinReconcileInterval:    time.Hour,
		SweepConcurrency:        4,
		SweepRatePerSecond:      20,
		SnapshotRefreshInterval: 30 * time.Second,
		ConflictRetryDelay:      50 * time.Millisecond,
	}
}

func (c EntitlementConfig) Validate() error {
	for _, pt := range c.PriceTiers {
		if !pt.Tier.IsPaid() {
			return fmt.Errorf("entitlement.price_tiers: price %s maps to non paid tier %s", pt.PriceID, pt.Tier)
		}
	}
	dupes := lo.FindDuplicatesBy(c.PriceTiers, func(pt PriceTier) string { return pt.PriceID })
	if len(dupes) > 0 {
		return fmt.Errorf("entitlement.price_tiers: duplicate price id %s", dupes[0].PriceID)
	}
	return nil
}

// TierForPrice resolves the tier granted by a provider price id
func (c EntitlementConfig) TierForPrice(priceID string) (types.Tier, bool) {
	pt, ok := lo.Find(c.PriceTiers, func(pt PriceTier) bool { return pt.PriceID == priceID })
	if !ok {
		return types.TierNone, false
	}
	return pt.Tier, true
}
