package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/membership/internal/domain/user"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/postgres"
	"github.com/flexprice/membership/internal/types"
)

type userRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return &userRepository{db: db, logger: logger}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	query := `
	INSERT INTO users (id, email, role, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.Role,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create user").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT id, email, role, created_at, updated_at FROM users WHERE id = $1`

	var u user.User
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("User %s not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get user").
			Mark(ierr.ErrDatabase)
	}
	u.Role = types.ParseRole(string(u.Role))
	return &u, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role types.Role) error {
	query := `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, role, time.Now().UTC())
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update user role").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("user not found").
			WithHintf("User %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
