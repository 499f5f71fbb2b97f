package testutil

import (
	"context"
	"time"

	"github.com/flexprice/membership/internal/cache"
	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/domain/user"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/types"
	"github.com/flexprice/membership/internal/validator"
	webhookPublisher "github.com/flexprice/membership/internal/webhook/publisher"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

// Price ids mapped to tiers in the test configuration
const (
	PriceTier1 = "price_tier1"
	PriceTier2 = "price_tier2"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	EntitlementRepo *InMemoryEntitlementStore
	UserRepo        *InMemoryUserStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx              context.Context
	stores           Stores
	pubSub           *InMemoryPubSub
	webhookPublisher webhookPublisher.WebhookPublisher
	db               *MockPostgresClient
	provider         *FakeBillingProvider
	cache            cache.Cache
	logger           *logger.Logger
	config           *config.Configuration
	now              time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Webhook.Enabled = true
	cfg.Entitlement.ConflictRetryDelay = 0
	cfg.Entitlement.PriceTiers = []config.PriceTier{
		{PriceID: PriceTier1, Tier: types.TierTier1},
		{PriceID: PriceTier2, Tier: types.TierTier2},
	}
	s.config = cfg
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		EntitlementRepo: NewInMemoryEntitlementStore(),
		UserRepo:        NewInMemoryUserStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.provider = NewFakeBillingProvider()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
	s.pubSub = NewInMemoryPubSub()
	publisher, err := webhookPublisher.NewPublisher(s.pubSub, s.config, s.logger)
	if err != nil {
		s.T().Fatalf("failed to create webhook publisher: %v", err)
	}
	s.webhookPublisher = publisher
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.EntitlementRepo.Clear()
	s.stores.UserRepo.Clear()
	s.cache.Flush(s.ctx)
	s.pubSub.Reset()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetWebhookPublisher returns the test webhook publisher
func (s *BaseServiceTestSuite) GetWebhookPublisher() webhookPublisher.WebhookPublisher {
	return s.webhookPublisher
}

// GetPubSub returns the pub/sub the webhook publisher writes to
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

// GetWebhookEvents returns the entitlement events published so far
func (s *BaseServiceTestSuite) GetWebhookEvents() []*types.WebhookEvent {
	return s.pubSub.WebhookEvents(s.config.Webhook.Topic)
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetBillingProvider returns the scriptable billing provider
func (s *BaseServiceTestSuite) GetBillingProvider() *FakeBillingProvider {
	return s.provider
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// SetNow moves the test clock
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now.UTC()
}

// Clock returns a clock reading the test time, for use as ServiceParams.Now
func (s *BaseServiceTestSuite) Clock() func() time.Time {
	return func() time.Time { return s.now }
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

// SeedAccount stores a user with role and the given entitlement record
func (s *BaseServiceTestSuite) SeedAccount(rec *entitlement.Record, role types.Role) {
	u := user.NewUser(rec.AccountID, rec.AccountID+"@example.com", s.GetNow())
	u.Role = role
	s.Require().NoError(s.stores.UserRepo.Create(context.Background(), u))
	s.stores.EntitlementRepo.Put(rec)
}

// PaidRecord builds an ACTIVE paid record backed by externalRef
func (s *BaseServiceTestSuite) PaidRecord(accountID string, tier types.Tier, start, end time.Time, externalRef string) *entitlement.Record {
	rec := entitlement.NewRecord(accountID, start)
	rec.Tier = tier
	rec.Status = types.EntitlementStatusActive
	rec.StartDate = start
	rec.EndDate = lo.ToPtr(end)
	if externalRef != "" {
		rec.ExternalRef = lo.ToPtr(externalRef)
		rec.CustomerRef = lo.ToPtr("cus_" + accountID)
	}
	return rec
}
