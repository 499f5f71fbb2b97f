package router

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/flexprice/membership/internal/config"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/sentry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(t *testing.T) (*Router, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	cfg := config.GetDefaultConfig()
	cfg.Webhook.MaxRetries = 1
	cfg.Webhook.InitialInterval = time.Millisecond
	cfg.Webhook.MaxInterval = time.Millisecond
	cfg.Webhook.MaxElapsedTime = time.Second

	r, err := NewRouter(cfg, log, sentry.NewSentryService(cfg, log))
	require.NoError(t, err)
	return r, logs
}

func runRouter(t *testing.T, r *Router) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = r.Close()
	})

	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func TestDeadLetterHandlerRecordsExhaustedDelivery(t *testing.T) {
	r, logs := newTestRouter(t)
	transport := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})

	var attempts atomic.Int32
	r.AddNoPublishHandler("webhook_delivery", "entitlement_webhooks", transport, func(msg *message.Message) error {
		attempts.Add(1)
		return errors.New("endpoint unavailable")
	})
	r.AddDeadLetterHandler()
	runRouter(t, r)

	msg := message.NewMessage("enth_1", []byte(`{"event_name":"entitlement.expired"}`))
	require.NoError(t, transport.Publish("entitlement_webhooks", msg))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("webhook delivery given up").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	entry := logs.FilterMessage("webhook delivery given up").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "enth_1", fields["message_uuid"])
	assert.Equal(t, "webhook_delivery", fields["handler"])
	assert.Equal(t, "entitlement_webhooks", fields["topic"])
	assert.Contains(t, fields["reason"], "endpoint unavailable")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNonRetryableErrorIsNotDeadLettered(t *testing.T) {
	r, logs := newTestRouter(t)
	transport := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})

	handled := make(chan struct{}, 1)
	r.AddNoPublishHandler("webhook_delivery", "entitlement_webhooks", transport, func(msg *message.Message) error {
		handled <- struct{}{}
		return ierr.NewError("bad payload").Mark(ierr.ErrValidation)
	})
	r.AddDeadLetterHandler()
	runRouter(t, r)

	require.NoError(t, transport.Publish("entitlement_webhooks", message.NewMessage("enth_2", []byte(`{}`))))

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not delivered")
	}
	require.Eventually(t, func() bool {
		return logs.FilterMessage("dropping message after non retryable error").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, logs.FilterMessage("webhook delivery given up").Len())
}
