package service

import (
	"time"

	"github.com/flexprice/membership/internal/cache"
	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/domain/billing"
	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/domain/user"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/postgres"
	"github.com/flexprice/membership/internal/sentry"
	webhookPublisher "github.com/flexprice/membership/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Sentry *sentry.Service
	Cache  cache.Cache

	// Repositories
	EntitlementRepo entitlement.Repository
	UserRepo        user.Repository

	// Billing provider client
	BillingProvider billing.Provider

	// Publishers
	WebhookPublisher webhookPublisher.WebhookPublisher

	// Now is the service clock, overridden in tests
	Now func() time.Time
}

// NewServiceParams creates a new instance of ServiceParams
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	cache cache.Cache,
	entitlementRepo entitlement.Repository,
	userRepo user.Repository,
	billingProvider billing.Provider,
	webhookPublisher webhookPublisher.WebhookPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Sentry:           sentry,
		Cache:            cache,
		EntitlementRepo:  entitlementRepo,
		UserRepo:         userRepo,
		BillingProvider:  billingProvider,
		WebhookPublisher: webhookPublisher,
		Now:              time.Now,
	}
}

func (p ServiceParams) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

func (p ServiceParams) policy() entitlement.Policy {
	return entitlement.NewPolicy(p.Config.Entitlement)
}
