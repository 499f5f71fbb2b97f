package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/flexprice/membership/internal/auth"
	"github.com/flexprice/membership/internal/config"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/service"
	"github.com/flexprice/membership/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

type stubGate struct {
	decision  service.Decision
	principal service.Principal
	resource  service.Resource
}

func (g *stubGate) Decide(_ context.Context, principal service.Principal, resource service.Resource) service.Decision {
	g.principal = principal
	g.resource = resource
	return g.decision
}

type MiddlewareSuite struct {
	suite.Suite
	cfg      *config.Configuration
	log      *logger.Logger
	sessions *auth.SessionManager
	gate     *stubGate
	router   *gin.Engine
}

func TestMiddleware(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.cfg = config.GetDefaultConfig()
	s.cfg.Auth.CronKey = "cron-secret"
	s.log = logger.NewNopLogger()
	s.sessions = auth.NewSessionManager(s.cfg)
	s.gate = &stubGate{decision: service.Decision{Kind: service.DecisionAllow}}

	perms := NewPermissionMiddleware(s.log)
	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"account_id": types.GetAccountID(c.Request.Context()),
			"request_id": types.GetRequestID(c.Request.Context()),
		})
	}

	r := gin.New()
	r.Use(RequestIDMiddleware, ErrorHandler(s.log), SessionMiddleware(s.sessions, s.log))
	r.GET("/content/*path", GateMiddleware(s.gate, service.Resource{RequiresEntitlement: true}), ok)
	r.GET("/accounts/:account_id", perms.RequireAccountAccess("account_id"), ok)
	r.GET("/reports", perms.RequirePermission(types.PermissionAdminDashboard), ok)
	r.POST("/cron", CronAuthMiddleware(s.cfg), ok)
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(ierr.NewError("record missing").
			WithHint("Entitlement not found").
			WithReportableDetails(map[string]any{"account_id": "acc_1"}).
			Mark(ierr.ErrNotFound))
	})
	s.router = r
}

func (s *MiddlewareSuite) token(accountID string, role types.Role) string {
	token, _, err := s.sessions.Issue(accountID, role, nil)
	s.Require().NoError(err)
	return token
}

func (s *MiddlewareSuite) do(method, path, token string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
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

func (s *MiddlewareSuite) TestRequestID() {
	w := s.do(http.MethodGet, "/accounts/acc_1", s.token("acc_1", types.RoleUser), map[string]string{
		types.HeaderRequestID: "req-123",
	})
	s.Equal(http.StatusOK, w.Code)
	s.Equal("req-123", w.Header().Get(types.HeaderRequestID))

	w = s.do(http.MethodGet, "/accounts/acc_1", s.token("acc_1", types.RoleUser), nil)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *MiddlewareSuite) TestSessionPopulatesPrincipal() {
	w := s.do(http.MethodGet, "/content/guide", s.token("acc_1", types.RolePremium), nil)
	s.Equal(http.StatusOK, w.Code)
	s.True(s.gate.principal.Authenticated)
	s.Equal("acc_1", s.gate.principal.AccountID)
	s.Equal(types.RolePremium, s.gate.principal.Role)
	s.Equal("/content/guide", s.gate.resource.Path)
	s.True(s.gate.resource.RequiresEntitlement)
}

func (s *MiddlewareSuite) TestInvalidSessionIsAnonymous() {
	s.do(http.MethodGet, "/content/guide", "not-a-token", nil)
	s.False(s.gate.principal.Authenticated)
}

func (s *MiddlewareSuite) TestGateRedirectsToLogin() {
	s.gate.decision = service.Decision{Kind: service.DecisionRedirectToLogin, NextPath: "/content/guide?page=2"}

	w := s.do(http.MethodGet, "/content/guide?page=2", "", nil)
	s.Equal(http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	s.Require().NoError(err)
	s.Equal(LoginPath, loc.Path)
	s.Equal("/content/guide?page=2", loc.Query().Get("next"))
	s.Empty(loc.Query().Get("error"))
}

func (s *MiddlewareSuite) TestGateAdminRequiredMarker() {
	s.gate.decision = service.Decision{
		Kind:        service.DecisionRedirectToLogin,
		NextPath:    "/admin/reports",
		ErrorMarker: service.ErrorMarkerAdminRequired,
	}

	w := s.do(http.MethodGet, "/content/x", s.token("acc_1", types.RoleUser), nil)
	s.Equal(http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	s.Require().NoError(err)
	s.Equal(service.ErrorMarkerAdminRequired, loc.Query().Get("error"))
}

func (s *MiddlewareSuite) TestGateRedirectsToPricing() {
	s.gate.decision = service.Decision{Kind: service.DecisionRedirectToPricing, AccessState: types.AccessStateExpired}

	w := s.do(http.MethodGet, "/content/guide", s.token("acc_1", types.RoleUser), nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal(PricingPath, w.Header().Get("Location"))
}

func (s *MiddlewareSuite) TestGateJSONCallers() {
	s.gate.decision = service.Decision{Kind: service.DecisionRedirectToPricing}
	w := s.do(http.MethodGet, "/content/guide", s.token("acc_1", types.RoleUser), map[string]string{
		"Accept": "application/json",
	})
	s.Equal(http.StatusPaymentRequired, w.Code)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(string(service.DecisionRedirectToPricing), body["decision"])
	s.Equal(PricingPath, body["location"])

	s.gate.decision = service.Decision{Kind: service.DecisionRedirectToLogin, NextPath: "/content/guide"}
	w = s.do(http.MethodGet, "/content/guide", "", map[string]string{"Accept": "application/json"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *MiddlewareSuite) TestRequireAccountAccess() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/accounts/acc_1", "", nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/accounts/acc_2", s.token("acc_1", types.RolePremium), nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/accounts/acc_2", s.token("admin_1", types.RoleAdmin), nil).Code)

	w := s.do(http.MethodGet, "/accounts/acc_1", s.token("acc_1", types.RoleUser), nil)
	s.Equal(http.StatusOK, w.Code)
	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("acc_1", body["account_id"])
}

func (s *MiddlewareSuite) TestRequirePermission() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/reports", "", nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/reports", s.token("acc_1", types.RolePremium), nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/reports", s.token("admin_1", types.RoleAdmin), nil).Code)
}

func (s *MiddlewareSuite) TestCronAuth() {
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/cron", "", map[string]string{HeaderCronKey: "cron-secret"}).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/cron", "", map[string]string{HeaderCronKey: "wrong"}).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/cron", "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/cron", s.token("acc_1", types.RolePremium), nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/cron", s.token("admin_1", types.RoleAdmin), nil).Code)
}

func (s *MiddlewareSuite) TestErrorHandler() {
	w := s.do(http.MethodGet, "/fail", "", nil)
	s.Equal(http.StatusNotFound, w.Code)

	var body ierr.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.False(body.Success)
	s.Equal("Entitlement not found", body.Error.Display)
	s.Equal("acc_1", body.Error.Details["account_id"])
}
