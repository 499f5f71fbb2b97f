package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flexprice/membership/internal/domain/entitlement"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
)

var _ entitlement.Repository = (*InMemoryEntitlementStore)(nil)

// InMemoryEntitlementStore implements entitlement.Repository with real compare-and-set
// semantics. Records are copied on the way in and out.
type InMemoryEntitlementStore struct {
	records *InMemoryStore[*entitlement.Record]

	// casMu makes the version check and the write of CompareAndSet atomic
	casMu sync.Mutex

	historyMu sync.Mutex
	history   []*entitlement.HistoryEntry

	faultsMu        sync.Mutex
	historyErr      error
	getErrs         map[string]error
	pendingConflict map[string]int
}

func NewInMemoryEntitlementStore() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{
		records:         NewInMemoryStore[*entitlement.Record](),
		getErrs:         make(map[string]error),
		pendingConflict: make(map[string]int),
	}
}

func (s *InMemoryEntitlementStore) Get(ctx context.Context, accountID string) (*entitlement.Record, error) {
	s.faultsMu.Lock()
	err := s.getErrs[accountID]
	s.faultsMu.Unlock()
	if err != nil {
		return nil, err
	}

	rec, err := s.records.Get(ctx, accountID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Entitlement for account %s was not found", accountID).
			Mark(ierr.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *InMemoryEntitlementStore) GetByExternalRef(ctx context.Context, externalRef string) (*entitlement.Record, error) {
	bound := s.records.List(ctx, func(r *entitlement.Record) bool {
		return externalRef != "" && r.ExternalRef != nil && *r.ExternalRef == externalRef
	}, nil)
	if len(bound) == 0 {
		return nil, ierr.NewError("entitlement not found").
			WithHintf("No entitlement is bound to subscription %s", externalRef).
			Mark(ierr.ErrNotFound)
	}
	return bound[0].Clone(), nil
}

func (s *InMemoryEntitlementStore) CompareAndSet(ctx context.Context, accountID string, expectedVersion int64, rec *entitlement.Record) (bool, error) {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	s.injectConcurrentWrite(ctx, accountID)

	stored := rec.Clone()
	stored.AccountID = accountID
	stored.Version = expectedVersion + 1

	current, err := s.records.Get(ctx, accountID)
	if err != nil {
		if expectedVersion != 0 {
			return false, nil
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		if err := s.records.Create(ctx, accountID, stored); err != nil {
			return false, err
		}
		rec.Version = stored.Version
		return true, nil
	}

	if current.Version != expectedVersion {
		return false, nil
	}
	if err := s.records.Update(ctx, accountID, stored); err != nil {
		return false, err
	}
	rec.Version = stored.Version
	return true, nil
}

// injectConcurrentWrite plays another writer that bumps the stored version just before our write
func (s *InMemoryEntitlementStore) injectConcurrentWrite(ctx context.Context, accountID string) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()

	if s.pendingConflict[accountID] == 0 {
		return
	}
	s.pendingConflict[accountID]--

	current, err := s.records.Get(ctx, accountID)
	if err != nil {
		return
	}
	bumped := current.Clone()
	bumped.Version++
	// the other writer committed on its own, outside our transaction
	_ = s.records.Update(context.Background(), accountID, bumped)
}

func (s *InMemoryEntitlementStore) AppendHistory(ctx context.Context, entry *entitlement.HistoryEntry) error {
	s.faultsMu.Lock()
	err := s.historyErr
	s.faultsMu.Unlock()
	if err != nil {
		return err
	}

	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	copied := *entry
	s.history = append(s.history, &copied)

	if tx := TxFromContext(ctx); tx != nil {
		id := entry.ID
		tx.OnRollback(func() {
			s.historyMu.Lock()
			defer s.historyMu.Unlock()
			for i, h := range s.history {
				if h.ID == id {
					s.history = append(s.history[:i], s.history[i+1:]...)
					break
				}
			}
		})
	}
	return nil
}

func (s *InMemoryEntitlementStore) ListHistory(_ context.Context, accountID string) ([]*entitlement.HistoryEntry, error) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	var result []*entitlement.HistoryEntry
	for _, h := range s.history {
		if h.AccountID == accountID {
			copied := *h
			result = append(result, &copied)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemoryEntitlementStore) ListNearExpiry(ctx context.Context, before time.Time) ([]*entitlement.Record, error) {
	return s.list(ctx, func(r *entitlement.Record) bool {
		return r.Status == types.EntitlementStatusActive &&
			r.HasExternalRef() &&
			r.EndDate != nil && !r.EndDate.After(before)
	}), nil
}

func (s *InMemoryEntitlementStore) ListLapsedUnbilled(ctx context.Context, before time.Time) ([]*entitlement.Record, error) {
	return s.list(ctx, func(r *entitlement.Record) bool {
		return r.Status == types.EntitlementStatusActive &&
			!r.HasExternalRef() &&
			r.EndDate != nil && r.EndDate.Before(before)
	}), nil
}

func (s *InMemoryEntitlementStore) list(ctx context.Context, filterFn FilterFunc[*entitlement.Record]) []*entitlement.Record {
	items := s.records.List(ctx, filterFn, func(i, j *entitlement.Record) bool {
		return i.EndDate.Before(*j.EndDate)
	})
	result := make([]*entitlement.Record, 0, len(items))
	for _, r := range items {
		result = append(result, r.Clone())
	}
	return result
}

// Put stores rec as is, bypassing compare-and-set. Used to seed tests.
func (s *InMemoryEntitlementStore) Put(rec *entitlement.Record) {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	stored := rec.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	if err := s.records.Update(context.Background(), stored.AccountID, stored); err != nil {
		_ = s.records.Create(context.Background(), stored.AccountID, stored)
	}
}

// History returns every history entry in append order
func (s *InMemoryEntitlementStore) History() []*entitlement.HistoryEntry {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return append([]*entitlement.HistoryEntry(nil), s.history...)
}

// FailHistoryWith makes every AppendHistory call fail with err until reset with nil
func (s *InMemoryEntitlementStore) FailHistoryWith(err error) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	s.historyErr = err
}

// FailGetWith makes Get fail with err for accountID until reset with nil
func (s *InMemoryEntitlementStore) FailGetWith(accountID string, err error) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	if err == nil {
		delete(s.getErrs, accountID)
		return
	}
	s.getErrs[accountID] = err
}

// SimulateConcurrentWrites makes the next n compare-and-set calls for accountID lose the race
func (s *InMemoryEntitlementStore) SimulateConcurrentWrites(accountID string, n int) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	s.pendingConflict[accountID] = n
}

func (s *InMemoryEntitlementStore) Clear() {
	s.records.Clear()

	s.historyMu.Lock()
	s.history = nil
	s.historyMu.Unlock()

	s.faultsMu.Lock()
	s.historyErr = nil
	s.getErrs = make(map[string]error)
	s.pendingConflict = make(map[string]int)
	s.faultsMu.Unlock()
}
