package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flexprice/membership/internal/api/cron"
	"github.com/flexprice/membership/internal/api/dto"
	v1 "github.com/flexprice/membership/internal/api/v1"
	"github.com/flexprice/membership/internal/auth"
	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/rest/middleware"
	"github.com/flexprice/membership/internal/service"
	"github.com/flexprice/membership/internal/testutil"
	"github.com/flexprice/membership/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	sessions *auth.SessionManager
	router   *gin.Engine
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	gin.SetMode(gin.TestMode)

	cfg := s.GetConfig()
	cfg.Auth.CronKey = "cron-secret"

	stores := s.GetStores()
	params := service.ServiceParams{
		Logger:           s.GetLogger(),
		Config:           cfg,
		DB:               s.GetDB(),
		Cache:            s.GetCache(),
		EntitlementRepo:  stores.EntitlementRepo,
		UserRepo:         stores.UserRepo,
		BillingProvider:  s.GetBillingProvider(),
		WebhookPublisher: s.GetWebhookPublisher(),
		Now:              s.Clock(),
	}

	entitlements := service.NewEntitlementService(params)
	trials := service.NewTrialService(params)
	reconciler := service.NewReconcilerService(params)
	s.sessions = auth.NewSessionManager(cfg)

	handlers := Handlers{
		Health:          v1.NewHealthHandler(nil, s.GetLogger()),
		Entitlement:     v1.NewEntitlementHandler(entitlements, trials, reconciler, s.GetLogger()),
		Session:         v1.NewSessionHandler(entitlements, s.sessions, s.GetLogger()),
		Content:         v1.NewContentHandler(s.GetLogger()),
		CronEntitlement: cron.NewEntitlementHandler(reconciler, s.GetLogger()),
	}
	s.router = NewRouter(handlers, cfg, s.GetLogger(), s.sessions, service.NewGate(params))
}

func (s *RouterSuite) token(accountID string, role types.Role, snapshot *entitlement.Snapshot) string {
	token, _, err := s.sessions.Issue(accountID, role, snapshot)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) do(method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(types.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *RouterSuite) TestHealth() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", "", nil, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/v1/health", "", nil, nil).Code)
}

func (s *RouterSuite) TestTrialJourney() {
	token := s.token("acc_1", types.RoleUser, nil)

	w := s.do(http.MethodPost, "/v1/entitlements/acc_1/init", token, map[string]string{"email": "one@example.com"}, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// no entitlement yet: the content gate falls back to the store and sends the caller to pricing
	w = s.do(http.MethodGet, "/v1/content/guide", token, nil, nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal(middleware.PricingPath, w.Header().Get("Location"))

	w = s.do(http.MethodPost, "/v1/entitlements/acc_1/trial", token, map[string]string{"referral_code": "FRIEND"}, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var trial dto.TrialResponse
	s.decode(w, &trial)
	s.Equal(types.TrialOutcomeActivated, trial.Outcome)

	w = s.do(http.MethodPost, "/v1/session/refresh", token, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var session dto.SessionResponse
	s.decode(w, &session)
	s.Equal(types.RoleSubscriber, session.Role)
	s.Require().True(session.Snapshot.IsComplete())
	s.Equal(types.TierFreeTrial, *session.Snapshot.Tier)

	w = s.do(http.MethodGet, "/v1/content/guide", session.Token, nil, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/entitlements/acc_1/history", session.Token, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var history dto.ListResponse[*entitlement.HistoryEntry]
	s.decode(w, &history)
	s.Require().Equal(1, history.Total)
	s.Equal("FRIEND", history.Items[0].Metadata["referral_code"])
}

func (s *RouterSuite) TestContentWithSnapshot() {
	end := s.GetNow().Add(5 * 24 * time.Hour)
	active := &entitlement.Snapshot{
		Tier:    lo.ToPtr(types.TierTier1),
		Status:  lo.ToPtr(types.EntitlementStatusActive),
		EndDate: lo.ToPtr(end),
	}

	w := s.do(http.MethodGet, "/v1/content/guide", s.token("acc_1", types.RoleSubscriber, active), nil, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/content/guide", "", nil, map[string]string{"Accept": "application/json"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestAdminArea() {
	w := s.do(http.MethodGet, "/v1/admin/reports", s.token("acc_1", types.RolePremium, nil), nil, nil)
	s.Equal(http.StatusFound, w.Code)
	s.Contains(w.Header().Get("Location"), "error=admin_required")

	w = s.do(http.MethodGet, "/v1/admin/reports", s.token("admin_1", types.RoleAdmin, nil), nil, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestAccountIsolation() {
	s.SeedAccount(entitlement.NewRecord("acc_2", s.GetNow()), types.RoleUser)

	w := s.do(http.MethodGet, "/v1/entitlements/acc_2", s.token("acc_1", types.RoleUser, nil), nil, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/v1/entitlements/acc_2", s.token("admin_1", types.RoleAdmin, nil), nil, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestErrorsRenderHints() {
	token := s.token("acc_1", types.RoleUser, nil)

	w := s.do(http.MethodGet, "/v1/entitlements/acc_1", token, nil, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/v1/entitlements/acc_1/activate", token, map[string]string{}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestCronSweep() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/v1/cron/entitlements/sweep", "", nil, nil).Code)

	w := s.do(http.MethodPost, "/v1/cron/entitlements/sweep", "", nil, map[string]string{
		middleware.HeaderCronKey: "cron-secret",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var summary dto.SweepSummary
	s.decode(w, &summary)
	s.Equal(0, summary.Processed)
}

func (s *RouterSuite) TestMetrics() {
	s.do(http.MethodGet, "/health", "", nil, nil)
	w := s.do(http.MethodGet, "/metrics", "", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "membership_http_requests_total")
}
