package service

import (
	"github.com/flexprice/membership/internal/testutil"
)

// newTestServiceParams wires the suite's in-memory collaborators into ServiceParams
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		Cache:            s.GetCache(),
		EntitlementRepo:  stores.EntitlementRepo,
		UserRepo:         stores.UserRepo,
		BillingProvider:  s.GetBillingProvider(),
		WebhookPublisher: s.GetWebhookPublisher(),
		Now:              s.Clock(),
	}
}
