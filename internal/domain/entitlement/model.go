package entitlement

import (
	"time"

	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Record is the locally cached entitlement of an account. There is at most one per account
// and it is never deleted.
type Record struct {
	AccountID        string                  `db:"account_id" json:"account_id"`
	Tier             types.Tier              `db:"tier" json:"tier"`
	Status           types.EntitlementStatus `db:"status" json:"status"`
	StartDate        time.Time               `db:"start_date" json:"start_date"`
	EndDate          *time.Time              `db:"end_date" json:"end_date,omitempty"`
	ExternalRef      *string                 `db:"external_ref" json:"external_ref,omitempty"`
	CustomerRef      *string                 `db:"customer_ref" json:"customer_ref,omitempty"`
	FreeTrialUsed    bool                    `db:"free_trial_used" json:"free_trial_used"`
	LastReconciledAt *time.Time              `db:"last_reconciled_at" json:"last_reconciled_at,omitempty"`
	// Version is bumped on every write and used as the compare-and-set token
	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewRecord returns the NONE record created alongside an account
func NewRecord(accountID string, now time.Time) *Record {
	return &Record{
		AccountID: accountID,
		Tier:      types.TierNone,
		StartDate: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can mutate a candidate without touching the read copy
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.EndDate = cloneTime(r.EndDate)
	c.LastReconciledAt = cloneTime(r.LastReconciledAt)
	if r.ExternalRef != nil {
		c.ExternalRef = lo.ToPtr(*r.ExternalRef)
	}
	if r.CustomerRef != nil {
		c.CustomerRef = lo.ToPtr(*r.CustomerRef)
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return lo.ToPtr(*t)
}

// HasExternalRef reports whether the record is backed by a provider subscription
func (r *Record) HasExternalRef() bool {
	return r != nil && r.ExternalRef != nil && *r.ExternalRef != ""
}

// Snapshot returns the subset of the record embedded in sessions
func (r *Record) Snapshot() *Snapshot {
	if r == nil {
		return nil
	}
	return &Snapshot{
		Tier:    lo.ToPtr(r.Tier),
		Status:  lo.ToPtr(r.Status),
		EndDate: cloneTime(r.EndDate),
	}
}

func (r *Record) Validate() error {
	if r.AccountID == "" {
		return ierr.NewError("account_id is required").
			WithHint("Account ID is required").
			Mark(ierr.ErrValidation)
	}
	if err := r.Tier.Validate(); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	if r.Tier != types.TierNone && r.EndDate == nil {
		return ierr.NewError("end_date is required for an entitled tier").
			WithHint("End date is required").
			WithReportableDetails(map[string]any{
				"account_id": r.AccountID,
				"tier":       r.Tier,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Snapshot is the entitlement state carried by a session. Fields are optional because
// sessions issued before the entitlement was known carry none of them.
type Snapshot struct {
	Tier    *types.Tier              `json:"tier,omitempty"`
	Status  *types.EntitlementStatus `json:"status,omitempty"`
	EndDate *time.Time               `json:"end_date,omitempty"`
}

// IsComplete reports whether the snapshot can be evaluated without a store read
func (s *Snapshot) IsComplete() bool {
	return s != nil && s.Tier != nil && s.Status != nil
}

// Record rebuilds an evaluable record from the snapshot
func (s *Snapshot) Record(accountID string) *Record {
	if !s.IsComplete() {
		return nil
	}
	return &Record{
		AccountID: accountID,
		Tier:      *s.Tier,
		Status:    *s.Status,
		EndDate:   cloneTime(s.EndDate),
	}
}

// HistoryEntry is an append-only audit row written with every tier or status transition
type HistoryEntry struct {
	ID        string                  `db:"id" json:"id"`
	AccountID string                  `db:"account_id" json:"account_id"`
	Tier      types.Tier              `db:"tier" json:"tier"`
	Status    types.EntitlementStatus `db:"status" json:"status"`
	StartDate time.Time               `db:"start_date" json:"start_date"`
	EndDate   *time.Time              `db:"end_date" json:"end_date,omitempty"`
	Reason    types.HistoryReason     `db:"reason" json:"reason"`
	Notes     string                  `db:"notes" json:"notes"`
	Amount    decimal.NullDecimal     `db:"amount" json:"amount"`
	Metadata  types.Metadata          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time               `db:"created_at" json:"created_at"`
}

// NewHistoryEntry records the resulting state of rec after a transition
func NewHistoryEntry(rec *Record, reason types.HistoryReason, now time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT_HISTORY),
		AccountID: rec.AccountID,
		Tier:      rec.Tier,
		Status:    rec.Status,
		StartDate: rec.StartDate,
		EndDate:   cloneTime(rec.EndDate),
		Reason:    reason,
		Notes:     reason.Description(),
		Metadata:  types.Metadata{},
		CreatedAt: now,
	}
}
