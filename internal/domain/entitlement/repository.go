package entitlement

import (
	"context"
	"time"
)

// Repository is the entitlement record store. Writes go through CompareAndSet so that
// concurrent writers of the same account never lose updates.
type Repository interface {
	// Get returns ierr.ErrNotFound when the account has no record
	Get(ctx context.Context, accountID string) (*Record, error)

	// GetByExternalRef returns the record bound to a provider subscription, or ierr.ErrNotFound
	GetByExternalRef(ctx context.Context, externalRef string) (*Record, error)

	// CompareAndSet stores rec if the stored version still equals expectedVersion.
	// An expectedVersion of 0 inserts the record only if none exists.
	// It returns false without error when the version no longer matches.
	// On success rec.Version holds the new version.
	CompareAndSet(ctx context.Context, accountID string, expectedVersion int64, rec *Record) (bool, error)

	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, accountID string) ([]*HistoryEntry, error)

	// ListNearExpiry returns ACTIVE records with an external ref whose end date is at or before before
	ListNearExpiry(ctx context.Context, before time.Time) ([]*Record, error)

	// ListLapsedUnbilled returns ACTIVE records without an external ref whose end date is before before
	ListLapsedUnbilled(ctx context.Context, before time.Time) ([]*Record, error)
}
