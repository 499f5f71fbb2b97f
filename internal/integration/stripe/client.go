package stripe

import (
	"github.com/flexprice/membership/internal/config"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/types"
	"github.com/stripe/stripe-go/v82"
)

// NewStripeClient builds the API client from the configured secret key
func NewStripeClient(cfg *config.Configuration, logger *logger.Logger) (*stripe.Client, error) {
	if cfg.Stripe.SecretKey == "" {
		if cfg.Deployment.Mode == types.ModeLocal {
			logger.Warnw("stripe secret key is not configured, provider calls will fail")
		} else {
			return nil, ierr.NewError("stripe secret key is required").
				WithHint("Stripe is not configured").
				Mark(ierr.ErrValidation)
		}
	}
	return stripe.NewClient(cfg.Stripe.SecretKey, nil), nil
}
