package testutil

import (
	"context"

	"github.com/flexprice/membership/internal/domain/user"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
)

var _ user.Repository = (*InMemoryUserStore)(nil)

// InMemoryUserStore is an in-memory implementation of the User repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.User]
	failRoleUpdate error
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore[*user.User](),
	}
}

// Create inserts the user if absent
func (s *InMemoryUserStore) Create(ctx context.Context, u *user.User) error {
	if _, err := s.InMemoryStore.Get(ctx, u.ID); err == nil {
		return nil
	}
	copied := *u
	err := s.InMemoryStore.Create(ctx, u.ID, &copied)
	if ierr.IsAlreadyExists(err) {
		return nil
	}
	return err
}

func (s *InMemoryUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("User %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (s *InMemoryUserStore) UpdateRole(ctx context.Context, id string, role types.Role) error {
	if s.failRoleUpdate != nil {
		return s.failRoleUpdate
	}
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.Role = role
	return s.InMemoryStore.Update(ctx, id, u)
}

// FailRoleUpdateWith makes UpdateRole fail with err until reset with nil
func (s *InMemoryUserStore) FailRoleUpdateWith(err error) {
	s.failRoleUpdate = err
}

func (s *InMemoryUserStore) Clear() {
	s.InMemoryStore.Clear()
	s.failRoleUpdate = nil
}
