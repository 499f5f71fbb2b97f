package publisher_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/testutil"
	"github.com/flexprice/membership/internal/types"
	"github.com/flexprice/membership/internal/webhook/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPublisher(t *testing.T, enabled bool) (publisher.WebhookPublisher, *testutil.InMemoryPubSub, *config.Configuration) {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Webhook.Enabled = enabled
	ps := testutil.NewInMemoryPubSub()
	p, err := publisher.NewPublisher(ps, cfg, logger.NewNopLogger())
	require.NoError(t, err)
	return p, ps, cfg
}

func TestPublishWebhook(t *testing.T) {
	p, ps, cfg := newPublisher(t, true)

	ctx := testutil.AccountContext(testutil.SetupContext(), "acc_1")
	event := &types.WebhookEvent{
		ID:        "enth_1",
		EventName: types.WebhookEventEntitlementTrialActivated,
		AccountID: "acc_1",
		UserID:    types.GetUserID(ctx),
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload:   json.RawMessage(`{"tier":"FREE_TRIAL"}`),
	}
	require.NoError(t, p.PublishWebhook(ctx, event))

	msgs := ps.Messages(cfg.Webhook.Topic)
	require.Len(t, msgs, 1)
	assert.Equal(t, "enth_1", msgs[0].UUID)
	assert.Equal(t, "acc_1", msgs[0].Metadata.Get("account_id"))
	assert.Equal(t, types.WebhookEventEntitlementTrialActivated, msgs[0].Metadata.Get("event_name"))
	assert.Equal(t, types.GetRequestID(ctx), msgs[0].Metadata.Get("request_id"))

	events := ps.WebhookEvents(cfg.Webhook.Topic)
	require.Len(t, events, 1)
	assert.Equal(t, "acc_1", events[0].UserID)
	assert.JSONEq(t, `{"tier":"FREE_TRIAL"}`, string(events[0].Payload))
}

func TestPublishWebhookGeneratesMissingID(t *testing.T) {
	p, ps, cfg := newPublisher(t, true)

	require.NoError(t, p.PublishWebhook(testutil.SetupContext(), &types.WebhookEvent{
		EventName: types.WebhookEventEntitlementExpired,
		AccountID: "acc_2",
	}))

	msgs := ps.Messages(cfg.Webhook.Topic)
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].UUID)
}

func TestPublishWebhookDisabled(t *testing.T) {
	p, ps, cfg := newPublisher(t, false)

	require.NoError(t, p.PublishWebhook(testutil.SetupContext(), &types.WebhookEvent{ID: "enth_1"}))
	assert.Empty(t, ps.Messages(cfg.Webhook.Topic))
}
