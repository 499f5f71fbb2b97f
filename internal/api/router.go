package api

import (
	"github.com/flexprice/membership/internal/api/cron"
	v1 "github.com/flexprice/membership/internal/api/v1"
	"github.com/flexprice/membership/internal/auth"
	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/metrics"
	"github.com/flexprice/membership/internal/rest/middleware"
	"github.com/flexprice/membership/internal/service"
	"github.com/flexprice/membership/internal/types"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health      *v1.HealthHandler
	Entitlement *v1.EntitlementHandler
	Session     *v1.SessionHandler
	Content     *v1.ContentHandler

	CronEntitlement *cron.EntitlementHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, sessions *auth.SessionManager, gate service.Gate) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.MetricsMiddleware,
		middleware.ErrorHandler(logger),
		middleware.SessionMiddleware(sessions, logger),
		middleware.SentryScopeMiddleware,
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers, logger, gate)
	registerCronRoutes(v1Group.Group("/cron", middleware.CronAuthMiddleware(cfg)), handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers, logger *logger.Logger, gate service.Gate) {
	perms := middleware.NewPermissionMiddleware(logger)

	router.GET("/health", handlers.Health.Health)

	entitlements := router.Group("/entitlements/:account_id", perms.RequireAccountAccess("account_id"))
	{
		entitlements.POST("/init", handlers.Entitlement.InitializeAccount)
		entitlements.GET("", handlers.Entitlement.GetEntitlement)
		entitlements.GET("/history", handlers.Entitlement.ListHistory)

		manage := entitlements.Group("", perms.RequirePermission(types.PermissionManageOwnPlan))
		manage.POST("/trial", handlers.Entitlement.ActivateTrial)
		manage.POST("/activate", handlers.Entitlement.ActivateSubscription)
		manage.POST("/cancel", handlers.Entitlement.Cancel)
		manage.POST("/check-renewal", handlers.Entitlement.CheckRenewal)
	}

	router.POST("/session/refresh", handlers.Session.Refresh)

	router.GET("/content/*path",
		middleware.GateMiddleware(gate, service.Resource{RequiresAuth: true, RequiresEntitlement: true}),
		handlers.Content.GetContent,
	)
	router.GET("/admin/*path",
		middleware.GateMiddleware(gate, service.Resource{RequiresAuth: true, AdminOnly: true}),
		handlers.Content.GetAdmin,
	)
}

func registerCronRoutes(cronGroup *gin.RouterGroup, handlers Handlers) {
	entitlements := cronGroup.Group("/entitlements")
	{
		entitlements.POST("/sweep", handlers.CronEntitlement.SweepEntitlements)
	}
}
