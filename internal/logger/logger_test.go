package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/flexprice/membership/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestToZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, toZapLevel(types.LogLevelDebug))
	assert.Equal(t, zapcore.WarnLevel, toZapLevel(types.LogLevelWarn))
	assert.Equal(t, zapcore.ErrorLevel, toZapLevel(types.LogLevelError))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel("verbose"))
}

func TestWithContext(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	ctx := types.SetRequestID(context.Background(), "req_1")
	ctx = types.SetAccountID(ctx, "acc_1")
	l.WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req_1", fields["request_id"])
	assert.Equal(t, "acc_1", fields["account_id"])
	assert.NotContains(t, fields, "user_id")

	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestWatermillLogger(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	wl := l.GetWatermillLogger().With(watermill.LogFields{"topic": "entitlement_webhooks"})
	wl.Info("subscribed", watermill.LogFields{"handler": "webhook"})
	wl.Error("delivery failed", errors.New("boom"), nil)
	wl.Trace("tick", nil)

	require.Equal(t, 3, logs.Len())
	entries := logs.All()

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "entitlement_webhooks", entries[0].ContextMap()["topic"])
	assert.Equal(t, "webhook", entries[0].ContextMap()["handler"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "entitlement_webhooks", entries[1].ContextMap()["topic"])

	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}

func TestTemporalLogger(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	tl := l.GetTemporalLogger()
	tl.Info("workflow started", "workflow_id", "entitlement-sweep")
	tl.Debug("dropped below level")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "entitlement-sweep", fields["workflow_id"])
	assert.Equal(t, "temporal", fields["component"])
}
