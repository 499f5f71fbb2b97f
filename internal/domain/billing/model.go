package billing

import (
	"context"
	"time"

	"github.com/flexprice/membership/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is the provider subscription mapped into the closed status enum
type Subscription struct {
	ID     string
	Status types.ProviderSubscriptionStatus
	// AccountID is the account the checkout was started for, empty when the provider carries none
	AccountID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	CustomerRef string
	// LatestInvoiceRef is the invoice to retry when the subscription is past due
	LatestInvoiceRef string
	PriceRef         string
	AmountPaid       decimal.NullDecimal
	Currency         string
}

// PeriodLapsed reports whether the provider's own current period ended before now
func (s *Subscription) PeriodLapsed(now time.Time) bool {
	return !s.PeriodEnd.IsZero() && now.After(s.PeriodEnd)
}

// Provider is the authoritative billing system. Implementations return ierr.ErrNotFound
// for unknown subscriptions, ierr.ErrHTTPClient for transport failures and
// ierr.ErrValidation for statuses outside the closed enum.
type Provider interface {
	GetSubscription(ctx context.Context, ref string) (*Subscription, error)
	// PayOutstandingInvoice retries payment of an open invoice and reports whether it was paid
	PayOutstandingInvoice(ctx context.Context, invoiceRef string) (bool, error)
	// CancelAtPeriodEnd stops future renewals without revoking the current period
	CancelAtPeriodEnd(ctx context.Context, ref string) error
}
