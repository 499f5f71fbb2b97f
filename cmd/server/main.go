package main

import (
	"context"
	"net/http"
	"time"

	"github.com/flexprice/membership/internal/api"
	"github.com/flexprice/membership/internal/api/cron"
	v1 "github.com/flexprice/membership/internal/api/v1"
	"github.com/flexprice/membership/internal/auth"
	"github.com/flexprice/membership/internal/cache"
	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/httpclient"
	"github.com/flexprice/membership/internal/integration/stripe"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/postgres"
	pubsubRouter "github.com/flexprice/membership/internal/pubsub/router"
	"github.com/flexprice/membership/internal/repository"
	"github.com/flexprice/membership/internal/sentry"
	"github.com/flexprice/membership/internal/service"
	"github.com/flexprice/membership/internal/svix"
	"github.com/flexprice/membership/internal/temporal"
	"github.com/flexprice/membership/internal/types"
	"github.com/flexprice/membership/internal/validator"
	"github.com/flexprice/membership/internal/webhook"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			cache.NewInMemoryCache,

			// Billing provider
			stripe.NewStripeClient,
			stripe.NewProvider,

			// Outbound HTTP
			httpclient.NewDefaultClient,
			svix.NewClient,

			// Pub/Sub router
			pubsubRouter.NewRouter,

			// Session tokens
			auth.NewSessionManager,

			// Temporal
			provideTemporalConfig,
			provideTemporalClient,
			provideTemporalService,
		),
	)

	// Postgres
	opts = append(opts, postgres.Module())

	// Webhooks
	opts = append(opts, webhook.Module)

	// Repositories
	opts = append(opts,
		fx.Provide(
			repository.NewEntitlementRepository,
			repository.NewUserRepository,
		),
	)

	// Services
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewEntitlementService,
			service.NewTrialService,
			service.NewReconcilerService,
			service.NewGate,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	db *postgres.DB,
	logger *logger.Logger,
	entitlementService service.EntitlementService,
	trialService service.TrialService,
	reconcilerService service.ReconcilerService,
	sessions *auth.SessionManager,
) api.Handlers {
	return api.Handlers{
		Health:          v1.NewHealthHandler(db, logger),
		Entitlement:     v1.NewEntitlementHandler(entitlementService, trialService, reconcilerService, logger),
		Session:         v1.NewSessionHandler(entitlementService, sessions, logger),
		Content:         v1.NewContentHandler(logger),
		CronEntitlement: cron.NewEntitlementHandler(reconcilerService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, sessions *auth.SessionManager, gate service.Gate) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, sessions, gate)
}

func provideTemporalConfig(cfg *config.Configuration) *config.TemporalConfig {
	return &cfg.Temporal
}

func provideTemporalClient(cfg *config.TemporalConfig, log *logger.Logger) (*temporal.TemporalClient, error) {
	return temporal.NewTemporalClient(cfg, log)
}

func provideTemporalService(temporalClient *temporal.TemporalClient, cfg *config.TemporalConfig, log *logger.Logger) *temporal.Service {
	return temporal.NewService(temporalClient, cfg, log)
}

type serverParams struct {
	fx.In

	Lifecycle       fx.Lifecycle
	Config          *config.Configuration
	Engine          *gin.Engine
	Router          *pubsubRouter.Router
	WebhookService  *webhook.WebhookService
	Reconciler      service.ReconcilerService
	TemporalClient  *temporal.TemporalClient
	TemporalService *temporal.Service
	Logger          *logger.Logger
}

func startServer(p serverParams) {
	mode := p.Config.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(p.Lifecycle, p.Engine, p.Config, p.Logger)
		startMessageRouter(p.Lifecycle, p.Router, p.WebhookService, p.Logger)
		startTemporalWorker(p.Lifecycle, p.TemporalClient, p.TemporalService, p.Reconciler, &p.Config.Temporal, p.Logger)
	case types.ModeAPI:
		startAPIServer(p.Lifecycle, p.Engine, p.Config, p.Logger)
		startMessageRouter(p.Lifecycle, p.Router, p.WebhookService, p.Logger)
	case types.ModeTemporalWorker:
		startMessageRouter(p.Lifecycle, p.Router, p.WebhookService, p.Logger)
		startTemporalWorker(p.Lifecycle, p.TemporalClient, p.TemporalService, p.Reconciler, &p.Config.Temporal, p.Logger)
	default:
		p.Logger.Fatalf("Unknown deployment mode: %s", mode)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.TemporalClient.Close()
			return nil
		},
	})
}

func startTemporalWorker(
	lc fx.Lifecycle,
	temporalClient *temporal.TemporalClient,
	temporalService *temporal.Service,
	reconciler service.ReconcilerService,
	cfg *config.TemporalConfig,
	log *logger.Logger,
) {
	worker := temporal.NewWorker(temporalClient, cfg, temporalService, reconciler, log)
	worker.RegisterWithLifecycle(lc)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	webhookService *webhook.WebhookService,
	logger *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Handlers must be registered before the router starts
			if err := webhookService.RegisterHandler(ctx, router); err != nil {
				return err
			}
			router.AddDeadLetterHandler()

			logger.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping message router")
			if err := router.Close(); err != nil {
				return err
			}
			return webhookService.Stop()
		},
	})
}
