package dto

import (
	"time"

	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/types"
)

// SessionResponse carries a freshly signed session token
type SessionResponse struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	AccountID string                `json:"account_id"`
	Role      types.Role            `json:"role"`
	Snapshot  *entitlement.Snapshot `json:"entitlement,omitempty"`
}
