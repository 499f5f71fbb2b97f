package user

import (
	"context"

	"github.com/flexprice/membership/internal/types"
)

type Repository interface {
	// Create inserts the user if absent and is a no-op otherwise
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateRole(ctx context.Context, id string, role types.Role) error
}
