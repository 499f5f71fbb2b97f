package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/types"
	"github.com/gin-gonic/gin"
)

const HeaderCronKey = "X-Cron-Key"

// CronAuthMiddleware admits the scheduler by its shared key, or an admin session with the
// reconcile permission. Without a configured key only admins pass.
func CronAuthMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	key := []byte(cfg.Auth.CronKey)

	return func(c *gin.Context) {
		if provided := c.GetHeader(HeaderCronKey); len(key) > 0 && provided != "" {
			if subtle.ConstantTimeCompare([]byte(provided), key) == 1 {
				ctx := types.SetUserID(c.Request.Context(), types.DefaultUserID)
				c.Request = c.Request.WithContext(ctx)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid cron key"})
			return
		}

		principal := GetPrincipal(c)
		if principal.Authenticated && principal.Role.Has(types.PermissionRunReconciler) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}
