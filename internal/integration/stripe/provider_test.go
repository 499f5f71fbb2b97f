package stripe

import (
	"errors"
	"net/http"
	"testing"
	"time"

	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestMapSubscriptionStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  stripe.SubscriptionStatus
		want    types.ProviderSubscriptionStatus
		wantErr bool
	}{
		{name: "active", status: stripe.SubscriptionStatusActive, want: types.ProviderSubscriptionStatusActive},
		{name: "trialing counts as active", status: stripe.SubscriptionStatusTrialing, want: types.ProviderSubscriptionStatusActive},
		{name: "past due", status: stripe.SubscriptionStatusPastDue, want: types.ProviderSubscriptionStatusPastDue},
		{name: "incomplete is still being paid", status: stripe.SubscriptionStatusIncomplete, want: types.ProviderSubscriptionStatusPastDue},
		{name: "canceled", status: stripe.SubscriptionStatusCanceled, want: types.ProviderSubscriptionStatusCanceled},
		{name: "incomplete expired", status: stripe.SubscriptionStatusIncompleteExpired, want: types.ProviderSubscriptionStatusCanceled},
		{name: "unpaid", status: stripe.SubscriptionStatusUnpaid, want: types.ProviderSubscriptionStatusUnpaid},
		{name: "paused is rejected", status: stripe.SubscriptionStatusPaused, wantErr: true},
		{name: "unknown is rejected", status: stripe.SubscriptionStatus("something_new"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mapSubscriptionStatus(tt.status)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToSubscription(t *testing.T) {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	stripeSub := &stripe.Subscription{
		ID:       "sub_123",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_123"},
		Metadata: map[string]string{AccountIDMetadataKey: "acc_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodStart: start.Unix(),
					CurrentPeriodEnd:   end.Unix(),
					Price:              &stripe.Price{ID: "price_premium_monthly"},
				},
			},
		},
		LatestInvoice: &stripe.Invoice{
			ID:         "in_123",
			AmountPaid: 1999,
			Currency:   stripe.CurrencyUSD,
		},
	}

	sub, err := toSubscription(stripeSub)
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, types.ProviderSubscriptionStatusActive, sub.Status)
	assert.Equal(t, "cus_123", sub.CustomerRef)
	assert.Equal(t, "acc_1", sub.AccountID)
	assert.True(t, start.Equal(sub.PeriodStart))
	assert.True(t, end.Equal(sub.PeriodEnd))
	assert.Equal(t, "price_premium_monthly", sub.PriceRef)
	assert.Equal(t, "in_123", sub.LatestInvoiceRef)
	require.True(t, sub.AmountPaid.Valid)
	assert.Equal(t, "19.99", sub.AmountPaid.Decimal.String())
	assert.Equal(t, "usd", sub.Currency)
}

func TestToSubscriptionWithoutPeriod(t *testing.T) {
	_, err := toSubscription(&stripe.Subscription{
		ID:     "sub_123",
		Status: stripe.SubscriptionStatusActive,
	})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestWrapStripeError(t *testing.T) {
	details := map[string]interface{}{"subscription_id": "sub_123"}

	notFound := wrapStripeError(&stripe.Error{
		HTTPStatusCode: http.StatusNotFound,
		Code:           stripe.ErrorCodeResourceMissing,
	}, "hint", details)
	assert.True(t, ierr.IsNotFound(notFound))

	badRequest := wrapStripeError(&stripe.Error{HTTPStatusCode: http.StatusBadRequest}, "hint", details)
	assert.True(t, ierr.IsInvalidOperation(badRequest))

	transport := wrapStripeError(errors.New("connection reset by peer"), "hint", details)
	assert.True(t, ierr.IsHTTPClient(transport))
	assert.False(t, ierr.IsNotFound(transport))
}
