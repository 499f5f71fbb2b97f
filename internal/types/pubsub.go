package types

import (
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/samber/lo"
)

// PubSubType selects the transport carrying webhook events to the delivery handler.
type PubSubType string

const (
	MemoryPubSub PubSubType = "memory"
)

// Validate accepts the empty value, which falls back to the in-memory transport.
func (p PubSubType) Validate() error {
	allowed := []PubSubType{MemoryPubSub}
	if p != "" && !lo.Contains(allowed, p) {
		return ierr.NewError("invalid pubsub type").
			WithHint("Webhook pubsub must be one of the supported transports").
			WithReportableDetails(map[string]any{
				"pubsub":  p,
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
