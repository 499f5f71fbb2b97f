package postgres

import (
	"context"

	"github.com/flexprice/membership/internal/logger"
	sentryService "github.com/flexprice/membership/internal/sentry"
	"github.com/flexprice/membership/internal/types"
	"github.com/getsentry/sentry-go"
)

// tracedClient opens a sentry span around every transaction it runs
type tracedClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

func newTracedClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &tracedClient{client: client, sentry: sentry, logger: logger}
}

func (c *tracedClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// nested calls join the outer transaction and its span
	if _, ok := GetTx(ctx); ok {
		return c.client.WithTx(ctx, fn)
	}

	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"account_id": types.GetAccountID(ctx),
		"request_id": types.GetRequestID(ctx),
	})
	err := c.client.WithTx(spanCtx, fn)
	if span != nil {
		span.Status = sentry.SpanStatusOK
		if err != nil {
			span.Status = sentry.SpanStatusInternalError
		}
		span.Finish()
	}
	return err
}
