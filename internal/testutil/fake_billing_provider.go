package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/membership/internal/domain/billing"
	ierr "github.com/flexprice/membership/internal/errors"
)

var _ billing.Provider = (*FakeBillingProvider)(nil)

// FakeBillingProvider is a scriptable billing.Provider
type FakeBillingProvider struct {
	mu            sync.Mutex
	subscriptions map[string]*billing.Subscription
	getErrs       map[string]error
	invoices      map[string]bool
	// paidSubscriptions replaces a subscription once its invoice is paid
	paidSubscriptions map[string]*billing.Subscription
	cancelErr         error

	GetCalls    map[string]int
	PayCalls    []string
	CancelCalls []string
}

func NewFakeBillingProvider() *FakeBillingProvider {
	return &FakeBillingProvider{
		subscriptions:     make(map[string]*billing.Subscription),
		getErrs:           make(map[string]error),
		invoices:          make(map[string]bool),
		paidSubscriptions: make(map[string]*billing.Subscription),
		GetCalls:          make(map[string]int),
	}
}

// SetSubscription registers the subscription returned for sub.ID
func (p *FakeBillingProvider) SetSubscription(sub *billing.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *sub
	p.subscriptions[sub.ID] = &copied
}

// FailGetWith makes GetSubscription(ref) fail with err
func (p *FakeBillingProvider) FailGetWith(ref string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getErrs[ref] = err
}

// SetInvoiceOutcome scripts PayOutstandingInvoice(invoiceRef). When paid, the
// subscription with after.ID is replaced by after.
func (p *FakeBillingProvider) SetInvoiceOutcome(invoiceRef string, paid bool, after *billing.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invoices[invoiceRef] = paid
	if after != nil {
		copied := *after
		p.paidSubscriptions[invoiceRef] = &copied
	}
}

func (p *FakeBillingProvider) FailCancelWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelErr = err
}

func (p *FakeBillingProvider) GetSubscription(ctx context.Context, ref string) (*billing.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.GetCalls[ref]++
	if err := p.getErrs[ref]; err != nil {
		return nil, err
	}
	sub, ok := p.subscriptions[ref]
	if !ok {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", ref).
			Mark(ierr.ErrNotFound)
	}
	copied := *sub
	return &copied, nil
}

func (p *FakeBillingProvider) PayOutstandingInvoice(ctx context.Context, invoiceRef string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.PayCalls = append(p.PayCalls, invoiceRef)
	paid, ok := p.invoices[invoiceRef]
	if !ok {
		return false, ierr.NewError("invoice not found").
			WithHintf("Invoice %s was not found", invoiceRef).
			Mark(ierr.ErrNotFound)
	}
	if paid {
		if after, ok := p.paidSubscriptions[invoiceRef]; ok {
			p.subscriptions[after.ID] = after
		}
	}
	return paid, nil
}

func (p *FakeBillingProvider) CancelAtPeriodEnd(ctx context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CancelCalls = append(p.CancelCalls, ref)
	return p.cancelErr
}

// TotalGetCalls returns how many GetSubscription calls were made
func (p *FakeBillingProvider) TotalGetCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.GetCalls {
		total += n
	}
	return total
}
