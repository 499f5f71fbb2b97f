package stripe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/membership/internal/domain/billing"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	sentryService "github.com/flexprice/membership/internal/sentry"
	"github.com/flexprice/membership/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// AccountIDMetadataKey is the subscription metadata key checkout sessions are created with
const AccountIDMetadataKey = "account_id"

// Provider implements billing.Provider on top of the Stripe API
type Provider struct {
	client *stripe.Client
	sentry *sentryService.Service
	logger *logger.Logger
}

func NewProvider(client *stripe.Client, sentry *sentryService.Service, logger *logger.Logger) billing.Provider {
	return &Provider{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

func (p *Provider) GetSubscription(ctx context.Context, ref string) (*billing.Subscription, error) {
	span, ctx := p.sentry.StartProviderSpan(ctx, "stripe.subscription.retrieve", map[string]interface{}{
		"subscription_id": ref,
	})
	if span != nil {
		defer span.Finish()
	}

	params := &stripe.SubscriptionRetrieveParams{
		Expand: []*string{
			stripe.String("latest_invoice"),
		},
	}

	stripeSub, err := p.client.V1Subscriptions.Retrieve(ctx, ref, params)
	if err != nil {
		p.logger.Errorw("failed to retrieve subscription from Stripe",
			"error", err,
			"subscription_id", ref,
		)
		return nil, wrapStripeError(err, "Could not fetch subscription information from Stripe", map[string]interface{}{
			"subscription_id": ref,
		})
	}

	return toSubscription(stripeSub)
}

func (p *Provider) PayOutstandingInvoice(ctx context.Context, invoiceRef string) (bool, error) {
	if invoiceRef == "" {
		return false, nil
	}

	span, ctx := p.sentry.StartProviderSpan(ctx, "stripe.invoice.pay", map[string]interface{}{
		"invoice_id": invoiceRef,
	})
	if span != nil {
		defer span.Finish()
	}

	invoice, err := p.client.V1Invoices.Pay(ctx, invoiceRef, &stripe.InvoicePayParams{})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			// a declined card is a definitive answer, not a transport failure
			p.logger.Infow("outstanding invoice payment declined",
				"invoice_id", invoiceRef,
				"decline_code", stripeErr.DeclineCode,
			)
			return false, nil
		}
		p.logger.Errorw("failed to pay outstanding invoice",
			"error", err,
			"invoice_id", invoiceRef,
		)
		return false, wrapStripeError(err, "Unable to retry the outstanding invoice", map[string]interface{}{
			"invoice_id": invoiceRef,
		})
	}

	return invoice.Status == stripe.InvoiceStatusPaid, nil
}

func (p *Provider) CancelAtPeriodEnd(ctx context.Context, ref string) error {
	span, ctx := p.sentry.StartProviderSpan(ctx, "stripe.subscription.cancel_at_period_end", map[string]interface{}{
		"subscription_id": ref,
	})
	if span != nil {
		defer span.Finish()
	}

	_, err := p.client.V1Subscriptions.Update(ctx, ref, &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		p.logger.Errorw("failed to cancel subscription at period end",
			"error", err,
			"subscription_id", ref,
		)
		return wrapStripeError(err, "Unable to cancel the subscription with Stripe", map[string]interface{}{
			"subscription_id": ref,
		})
	}
	return nil
}

// toSubscription maps a Stripe subscription into the provider neutral model
func toSubscription(stripeSub *stripe.Subscription) (*billing.Subscription, error) {
	status, err := mapSubscriptionStatus(stripeSub.Status)
	if err != nil {
		return nil, ierr.WithError(err).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": stripeSub.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	sub := &billing.Subscription{
		ID:        stripeSub.ID,
		Status:    status,
		AccountID: stripeSub.Metadata[AccountIDMetadataKey],
	}

	if stripeSub.Customer != nil {
		sub.CustomerRef = stripeSub.Customer.ID
	}

	// period dates live on the subscription items
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 {
		item := stripeSub.Items.Data[0]
		sub.PeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		sub.PeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		if item.Price != nil {
			sub.PriceRef = item.Price.ID
		}
	}
	if sub.PeriodEnd.IsZero() || !sub.PeriodEnd.After(sub.PeriodStart) {
		return nil, ierr.NewError("subscription has no current period").
			WithHint("Billing provider returned a subscription without a billing period").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": stripeSub.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	if stripeSub.LatestInvoice != nil {
		sub.LatestInvoiceRef = stripeSub.LatestInvoice.ID
		if stripeSub.LatestInvoice.AmountPaid > 0 {
			sub.AmountPaid = decimal.NewNullDecimal(decimal.New(stripeSub.LatestInvoice.AmountPaid, -2))
		}
		sub.Currency = string(stripeSub.LatestInvoice.Currency)
	}

	return sub, nil
}

// mapSubscriptionStatus folds Stripe's statuses into the closed set the state machine accepts
func mapSubscriptionStatus(status stripe.SubscriptionStatus) (types.ProviderSubscriptionStatus, error) {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return types.ProviderSubscriptionStatusActive, nil
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusIncomplete:
		return types.ProviderSubscriptionStatusPastDue, nil
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return types.ProviderSubscriptionStatusCanceled, nil
	case stripe.SubscriptionStatusUnpaid:
		return types.ProviderSubscriptionStatusUnpaid, nil
	}
	return "", ierr.NewError("unsupported stripe subscription status").
		WithHintf("Billing provider returned unsupported status %q", status).
		WithReportableDetails(map[string]interface{}{
			"status": status,
		}).
		Mark(ierr.ErrValidation)
}

// wrapStripeError classifies a Stripe API failure
func wrapStripeError(err error, hint string, details map[string]interface{}) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return ierr.WithError(err).
				WithHint(hint).
				WithReportableDetails(details).
				Mark(ierr.ErrNotFound)
		}
		if stripeErr.HTTPStatusCode == http.StatusBadRequest {
			return ierr.WithError(err).
				WithHint(hint).
				WithReportableDetails(details).
				Mark(ierr.ErrInvalidOperation)
		}
	}
	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrHTTPClient)
}
