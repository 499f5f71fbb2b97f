package dto

import (
	"time"

	"github.com/flexprice/membership/internal/types"
)

// EntitlementEventPayload is the data section of every entitlement webhook
type EntitlementEventPayload struct {
	HistoryID string                  `json:"history_id"`
	AccountID string                  `json:"account_id"`
	Tier      types.Tier              `json:"tier"`
	Status    types.EntitlementStatus `json:"status"`
	StartDate time.Time               `json:"start_date"`
	EndDate   *time.Time              `json:"end_date,omitempty"`
	Reason    types.HistoryReason     `json:"reason"`
	Role      types.Role              `json:"role,omitempty"`
	Metadata  types.Metadata          `json:"metadata,omitempty"`
}

// Envelope is the body delivered to webhook endpoints
type Envelope struct {
	ID        string      `json:"id"`
	EventName string      `json:"event_name"`
	AccountID string      `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}
