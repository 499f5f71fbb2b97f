package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/membership/internal/cache"
	"github.com/flexprice/membership/internal/domain/entitlement"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/metrics"
	"github.com/flexprice/membership/internal/types"
	webhookDto "github.com/flexprice/membership/internal/webhook/dto"
	"github.com/shopspring/decimal"
)

// change is the outcome of a mutation: the candidate record and, for tier or status
// moves, the history reason to record. A change without a reason only refreshes
// bookkeeping fields such as LastReconciledAt and writes no history.
type change struct {
	record   *entitlement.Record
	reason   types.HistoryReason
	kind     entitlement.TransitionKind
	amount   decimal.NullDecimal
	metadata types.Metadata
}

// mutation inspects the current record inside the transaction and returns the change to
// apply, or nil to leave the record untouched. current is a private copy; a record that
// does not exist yet is passed as a fresh NONE record with version 0.
type mutation func(current *entitlement.Record) (*change, error)

// transitionResult is what a committed (or skipped) mutation produced
type transitionResult struct {
	Record  *entitlement.Record
	Entry   *entitlement.HistoryEntry
	Role    types.Role
	Written bool
}

// errConflict marks a lost compare-and-set race inside one attempt
var errConflict = errors.New("entitlement record changed concurrently")

// transitioner is the single writer of entitlement records. Every write is a
// compare-and-set of the record, the history entry and the role change in one
// transaction, retried once when another writer got there first.
type transitioner struct {
	ServiceParams
}

func newTransitioner(params ServiceParams) *transitioner {
	return &transitioner{ServiceParams: params}
}

func (t *transitioner) apply(ctx context.Context, accountID string, mutate mutation) (*transitionResult, error) {
	var result *transitionResult

	operation := func() error {
		res, err := t.attempt(ctx, accountID, mutate)
		if err != nil {
			if errors.Is(err, errConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	retry := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.Config.Entitlement.ConflictRetryDelay), 1),
		ctx,
	)
	if err := backoff.Retry(operation, retry); err != nil {
		if errors.Is(err, errConflict) {
			t.Logger.Warnw("entitlement write lost the compare-and-set race twice",
				"account_id", accountID,
			)
			return nil, ierr.NewError("entitlement record changed concurrently").
				WithHint("The entitlement was updated by another request, please retry").
				WithAccount(accountID).
				Mark(ierr.ErrVersionConflict)
		}
		return nil, err
	}

	if result.Written && result.Entry != nil {
		t.afterCommit(ctx, result)
	}
	if result.Written {
		// role changes ride the same transaction, so both entries go stale together
		cache.InvalidateAccount(ctx, t.Cache, accountID)
	}
	return result, nil
}

func (t *transitioner) attempt(ctx context.Context, accountID string, mutate mutation) (*transitionResult, error) {
	var result *transitionResult

	err := t.DB.WithTx(ctx, func(ctx context.Context) error {
		current, err := t.EntitlementRepo.Get(ctx, accountID)
		if err != nil {
			if !ierr.IsNotFound(err) {
				return err
			}
			current = entitlement.NewRecord(accountID, t.now())
		}

		ch, err := mutate(current.Clone())
		if err != nil {
			return err
		}
		if ch == nil {
			result = &transitionResult{Record: current}
			return nil
		}

		next := ch.record
		next.AccountID = accountID
		next.UpdatedAt = t.now()
		if err := next.Validate(); err != nil {
			return err
		}
		if ch.reason != "" {
			if err := entitlement.CanTransition(current, next, ch.kind); err != nil {
				return err
			}
		}

		ok, err := t.EntitlementRepo.CompareAndSet(ctx, accountID, current.Version, next)
		if err != nil {
			return err
		}
		if !ok {
			return errConflict
		}

		result = &transitionResult{Record: next, Written: true}
		if ch.reason == "" {
			return nil
		}

		entry := entitlement.NewHistoryEntry(next, ch.reason, t.now())
		entry.Amount = ch.amount
		entry.Metadata = entry.Metadata.Merge(ch.metadata)
		if err := t.EntitlementRepo.AppendHistory(ctx, entry); err != nil {
			return err
		}
		result.Entry = entry

		role, err := t.syncRole(ctx, next)
		if err != nil {
			return err
		}
		result.Role = role
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// syncRole moves the account role to the one implied by the new record. Admins keep
// their role and accounts without a user row are left alone.
func (t *transitioner) syncRole(ctx context.Context, rec *entitlement.Record) (types.Role, error) {
	u, err := t.UserRepo.GetByID(ctx, rec.AccountID)
	if err != nil {
		if ierr.IsNotFound(err) {
			t.Logger.Debugw("no user for entitlement record, skipping role change",
				"account_id", rec.AccountID,
			)
			return "", nil
		}
		return "", err
	}
	if u.Role.IsAdmin() {
		return u.Role, nil
	}

	desired := types.RoleUser
	if rec.Status != types.EntitlementStatusExpired {
		desired = types.RoleForTier(rec.Tier)
	}
	if desired == u.Role {
		return u.Role, nil
	}

	if err := t.UserRepo.UpdateRole(ctx, rec.AccountID, desired); err != nil {
		return "", err
	}
	t.Logger.Infow("account role changed",
		"account_id", rec.AccountID,
		"from", u.Role,
		"to", desired,
	)
	return desired, nil
}

func (t *transitioner) afterCommit(ctx context.Context, result *transitionResult) {
	entry := result.Entry
	metrics.RecordTransition(entry.Reason.String())

	t.Logger.Infow("entitlement transition committed",
		"account_id", entry.AccountID,
		"history_id", entry.ID,
		"tier", entry.Tier,
		"status", entry.Status,
		"reason", entry.Reason,
	)

	t.publishWebhookEvent(ctx, result)
}

func (t *transitioner) publishWebhookEvent(ctx context.Context, result *transitionResult) {
	entry := result.Entry
	eventPayload := webhookDto.EntitlementEventPayload{
		HistoryID: entry.ID,
		AccountID: entry.AccountID,
		Tier:      entry.Tier,
		Status:    entry.Status,
		StartDate: entry.StartDate,
		EndDate:   entry.EndDate,
		Reason:    entry.Reason,
		Role:      result.Role,
		Metadata:  entry.Metadata,
	}

	webhookPayload, err := json.Marshal(eventPayload)
	if err != nil {
		t.Logger.Errorw("failed to marshal webhook payload", "error", err)
		return
	}

	webhookEvent := &types.WebhookEvent{
		ID:        entry.ID,
		EventName: types.WebhookEventForReason(entry.Reason),
		AccountID: entry.AccountID,
		UserID:    types.GetUserID(ctx),
		Timestamp: entry.CreatedAt,
		Payload:   json.RawMessage(webhookPayload),
	}
	if err := t.WebhookPublisher.PublishWebhook(ctx, webhookEvent); err != nil {
		t.Logger.Errorw("failed to publish entitlement event",
			"event_name", webhookEvent.EventName,
			"history_id", entry.ID,
			"error", err,
		)
	}
}
