package service

import (
	"context"
	"time"

	"github.com/flexprice/membership/internal/domain/billing"
	"github.com/flexprice/membership/internal/metrics"
)

// Billing provider calls shared by services, each bounded by the provider timeout

func (p ServiceParams) fetchSubscription(ctx context.Context, ref string) (*billing.Subscription, error) {
	ctx, done := p.providerCall(ctx, "get_subscription", ref)
	sub, err := p.BillingProvider.GetSubscription(ctx, ref)
	done(err)
	return sub, err
}

func (p ServiceParams) payInvoice(ctx context.Context, invoiceRef string) (bool, error) {
	ctx, done := p.providerCall(ctx, "pay_invoice", invoiceRef)
	paid, err := p.BillingProvider.PayOutstandingInvoice(ctx, invoiceRef)
	done(err)
	return paid, err
}

func (p ServiceParams) cancelAtPeriodEnd(ctx context.Context, ref string) error {
	ctx, done := p.providerCall(ctx, "cancel_at_period_end", ref)
	err := p.BillingProvider.CancelAtPeriodEnd(ctx, ref)
	done(err)
	return err
}

func (p ServiceParams) providerCall(ctx context.Context, operation, ref string) (context.Context, func(error)) {
	span, ctx := p.Sentry.StartProviderSpan(ctx, "billing."+operation, map[string]interface{}{
		"ref": ref,
	})

	cancel := context.CancelFunc(func() {})
	if timeout := p.Config.Entitlement.ProviderTimeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	start := time.Now()
	return ctx, func(err error) {
		cancel()
		metrics.ObserveProviderCall(operation, err, time.Since(start))
		if span != nil {
			span.Finish()
		}
	}
}
