package middleware

import (
	"net/http"

	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/types"
	"github.com/gin-gonic/gin"
)

// PermissionMiddleware checks role permissions of the session principal
type PermissionMiddleware struct {
	logger *logger.Logger
}

func NewPermissionMiddleware(logger *logger.Logger) *PermissionMiddleware {
	return &PermissionMiddleware{logger: logger}
}

// RequirePermission rejects anonymous callers with 401 and callers whose role lacks p with 403
func (pm *PermissionMiddleware) RequirePermission(p types.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if !principal.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		if !principal.Role.Has(p) {
			pm.logger.Infow("permission denied",
				"account_id", principal.AccountID,
				"role", principal.Role,
				"permission", p,
				"path", c.Request.URL.Path,
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}

// RequireAccountAccess lets a principal act on its own :account_id. Roles that may view all
// accounts pass for any account.
func (pm *PermissionMiddleware) RequireAccountAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if !principal.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		accountID := c.Param(param)
		if accountID != principal.AccountID && !principal.Role.Has(types.PermissionViewAllAccounts) {
			pm.logger.Infow("account access denied",
				"account_id", principal.AccountID,
				"target_account_id", accountID,
				"path", c.Request.URL.Path,
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "You don't have access to this account",
			})
			return
		}

		c.Next()
	}
}
