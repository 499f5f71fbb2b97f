package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/membership/internal/domain/entitlement"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/postgres"
	"github.com/flexprice/membership/internal/types"
	"github.com/lib/pq"
)

const entitlementColumns = `account_id, tier, status, start_date, end_date, external_ref, customer_ref,
	free_trial_used, last_reconciled_at, version, created_at, updated_at`

// only idx_entitlements_external_ref can raise it on entitlements
const uniqueViolation pq.ErrorCode = "23505"

type entitlementRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewEntitlementRepository(db *postgres.DB, logger *logger.Logger) entitlement.Repository {
	return &entitlementRepository{db: db, logger: logger}
}

func (r *entitlementRepository) Get(ctx context.Context, accountID string) (*entitlement.Record, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE account_id = $1`

	var rec entitlement.Record
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &rec, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Entitlement for account %s not found", accountID).
				WithAccount(accountID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get entitlement").
			Mark(ierr.ErrDatabase)
	}
	return &rec, nil
}

func (r *entitlementRepository) GetByExternalRef(ctx context.Context, externalRef string) (*entitlement.Record, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE external_ref = $1 LIMIT 1`

	var rec entitlement.Record
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &rec, query, externalRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("No entitlement is bound to subscription %s", externalRef).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get entitlement").
			Mark(ierr.ErrDatabase)
	}
	return &rec, nil
}

func (r *entitlementRepository) CompareAndSet(ctx context.Context, accountID string, expectedVersion int64, rec *entitlement.Record) (bool, error) {
	if rec.AccountID != accountID {
		return false, ierr.NewError("account id mismatch").
			WithHint("Record does not belong to the account").
			WithReportableDetails(map[string]any{
				"account_id":        accountID,
				"record_account_id": rec.AccountID,
			}).
			Mark(ierr.ErrValidation)
	}

	now := time.Now().UTC()
	q := r.db.GetQuerier(ctx)

	var (
		result sql.Result
		err    error
	)
	if expectedVersion == 0 {
		result, err = q.ExecContext(ctx, `
			INSERT INTO entitlements (`+entitlementColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10)
			ON CONFLICT (account_id) DO NOTHING`,
			rec.AccountID,
			rec.Tier,
			rec.Status,
			rec.StartDate,
			rec.EndDate,
			rec.ExternalRef,
			rec.CustomerRef,
			rec.FreeTrialUsed,
			rec.LastReconciledAt,
			now,
		)
	} else {
		result, err = q.ExecContext(ctx, `
			UPDATE entitlements SET
				tier = $3,
				status = $4,
				start_date = $5,
				end_date = $6,
				external_ref = $7,
				customer_ref = $8,
				free_trial_used = $9,
				last_reconciled_at = $10,
				version = version + 1,
				updated_at = $11
			WHERE account_id = $1 AND version = $2`,
			accountID,
			expectedVersion,
			rec.Tier,
			rec.Status,
			rec.StartDate,
			rec.EndDate,
			rec.ExternalRef,
			rec.CustomerRef,
			rec.FreeTrialUsed,
			rec.LastReconciledAt,
			now,
		)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, ierr.WithError(err).
				WithHint("The subscription is already bound to another account").
				WithAccount(accountID).
				Mark(ierr.ErrAlreadyExists)
		}
		return false, ierr.WithError(err).
			WithHint("Failed to save entitlement").
			Mark(ierr.ErrDatabase)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		r.logger.Debugw("entitlement compare-and-set lost",
			"account_id", accountID,
			"expected_version", expectedVersion,
		)
		return false, nil
	}

	rec.Version = expectedVersion + 1
	rec.UpdatedAt = now
	if expectedVersion == 0 {
		rec.CreatedAt = now
	}
	return true, nil
}

func (r *entitlementRepository) AppendHistory(ctx context.Context, entry *entitlement.HistoryEntry) error {
	query := `
		INSERT INTO entitlement_history (
			id, account_id, tier, status, start_date, end_date, reason, notes, amount, metadata, created_at
		) VALUES (
			:id, :account_id, :tier, :status, :start_date, :end_date, :reason, :notes, :amount, :metadata, :created_at
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, entry); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record entitlement history").
			WithReportableDetails(map[string]any{
				"account_id": entry.AccountID,
				"reason":     entry.Reason,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *entitlementRepository) ListHistory(ctx context.Context, accountID string) ([]*entitlement.HistoryEntry, error) {
	query := `
		SELECT id, account_id, tier, status, start_date, end_date, reason, notes, amount, metadata, created_at
		FROM entitlement_history
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC`

	var entries []*entitlement.HistoryEntry
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &entries, query, accountID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list entitlement history").
			Mark(ierr.ErrDatabase)
	}
	return entries, nil
}

func (r *entitlementRepository) ListNearExpiry(ctx context.Context, before time.Time) ([]*entitlement.Record, error) {
	query := `SELECT ` + entitlementColumns + `
		FROM entitlements
		WHERE status = $1
			AND external_ref IS NOT NULL AND external_ref <> ''
			AND end_date <= $2
		ORDER BY end_date ASC`

	return r.list(ctx, query, types.EntitlementStatusActive, before)
}

func (r *entitlementRepository) ListLapsedUnbilled(ctx context.Context, before time.Time) ([]*entitlement.Record, error) {
	query := `SELECT ` + entitlementColumns + `
		FROM entitlements
		WHERE status = $1
			AND (external_ref IS NULL OR external_ref = '')
			AND end_date < $2
		ORDER BY end_date ASC`

	return r.list(ctx, query, types.EntitlementStatusActive, before)
}

func (r *entitlementRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entitlement.Record, error) {
	var records []*entitlement.Record
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &records, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list entitlements").
			Mark(ierr.ErrDatabase)
	}
	return records, nil
}
