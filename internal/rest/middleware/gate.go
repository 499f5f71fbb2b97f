package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/flexprice/membership/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	LoginPath   = "/login"
	PricingPath = "/pricing"
)

// GateMiddleware enforces gate decisions for the routes it is attached to. Browsers are
// redirected; callers that accept JSON get 401 or 402 instead.
func GateMiddleware(gate service.Gate, resource service.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := resource
		res.Path = c.Request.URL.RequestURI()

		decision := gate.Decide(c.Request.Context(), GetPrincipal(c), res)
		if decision.Allowed() {
			c.Next()
			return
		}

		if wantsJSON(c) {
			status := http.StatusPaymentRequired
			message := "An active subscription is required"
			if decision.Kind == service.DecisionRedirectToLogin {
				status = http.StatusUnauthorized
				message = "Please log in to continue"
				if decision.ErrorMarker == service.ErrorMarkerAdminRequired {
					message = "Admin access is required"
				}
			}
			c.AbortWithStatusJSON(status, gin.H{
				"success":  false,
				"decision": decision.Kind,
				"error":    gin.H{"message": message},
				"location": redirectLocation(decision),
			})
			return
		}

		c.Redirect(http.StatusFound, redirectLocation(decision))
		c.Abort()
	}
}

func redirectLocation(decision service.Decision) string {
	if decision.Kind != service.DecisionRedirectToLogin {
		return PricingPath
	}

	q := url.Values{}
	if decision.NextPath != "" {
		q.Set("next", decision.NextPath)
	}
	if decision.ErrorMarker != "" {
		q.Set("error", decision.ErrorMarker)
	}
	if len(q) == 0 {
		return LoginPath
	}
	return LoginPath + "?" + q.Encode()
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
