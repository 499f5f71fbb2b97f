package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent represents a webhook event to be delivered
type WebhookEvent struct {
	// ID is the history entry id of the transition and doubles as the idempotency key
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	AccountID string          `json:"account_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// entitlement event names
const (
	WebhookEventEntitlementTrialActivated = "entitlement.trial_activated"
	WebhookEventEntitlementActivated      = "entitlement.activated"
	WebhookEventEntitlementRenewed        = "entitlement.renewed"
	WebhookEventEntitlementExpired        = "entitlement.expired"
	WebhookEventEntitlementCancelled      = "entitlement.cancelled"
)

// WebhookEventForReason maps a history reason to the event announced for it
func WebhookEventForReason(reason HistoryReason) string {
	switch reason {
	case HistoryReasonTrialActivated:
		return WebhookEventEntitlementTrialActivated
	case HistoryReasonSubscriptionActivated:
		return WebhookEventEntitlementActivated
	case HistoryReasonRenewalConfirmed:
		return WebhookEventEntitlementRenewed
	case HistoryReasonCancelledByUser:
		return WebhookEventEntitlementCancelled
	default:
		return WebhookEventEntitlementExpired
	}
}
