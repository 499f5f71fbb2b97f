package user

import (
	"time"

	"github.com/flexprice/membership/internal/types"
)

type User struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Role      types.Role `db:"role" json:"role"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

func NewUser(id, email string, now time.Time) *User {
	return &User{
		ID:        id,
		Email:     email,
		Role:      types.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
