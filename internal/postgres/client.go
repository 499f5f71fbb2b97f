package postgres

import (
	"context"

	"github.com/flexprice/membership/internal/logger"
	sentryService "github.com/flexprice/membership/internal/sentry"
	"go.uber.org/fx"
)

// IClient defines the transaction boundary services depend on
type IClient interface {
	// WithTx wraps the given function in a transaction, reusing one already carried by ctx
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Module provides an fx.Option to integrate the postgres client with the application
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, db *DB) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					db.Close()
					return nil
				},
			})
		}),
	)
}

// NewClient returns the transaction client, instrumented with sentry spans when enabled
func NewClient(db *DB, sentry *sentryService.Service, logger *logger.Logger) IClient {
	if sentry.Enabled() {
		return newTracedClient(db, sentry, logger)
	}
	return db
}
