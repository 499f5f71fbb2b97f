package middleware

import (
	"strings"

	"github.com/flexprice/membership/internal/auth"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/service"
	"github.com/flexprice/membership/internal/types"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// SessionMiddleware resolves an optional bearer session into a service.Principal.
// Requests without a valid session continue as anonymous; the gate decides what they may reach.
func SessionMiddleware(sessions *auth.SessionManager, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := service.Principal{}

		if token, ok := bearerToken(c.GetHeader(types.HeaderAuthorization)); ok {
			claims, err := sessions.Parse(token)
			if err != nil {
				log.Debugw("ignoring invalid session",
					"request_id", types.GetRequestID(c.Request.Context()),
					"error", err,
				)
			} else {
				principal = service.Principal{
					Authenticated: true,
					AccountID:     claims.AccountID,
					Role:          claims.Role,
					Snapshot:      claims.Snapshot,
				}

				ctx := c.Request.Context()
				ctx = types.SetAccountID(ctx, claims.AccountID)
				ctx = types.SetUserID(ctx, claims.AccountID)
				c.Request = c.Request.WithContext(ctx)
			}
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// GetPrincipal returns the principal resolved by SessionMiddleware, anonymous if none
func GetPrincipal(c *gin.Context) service.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(service.Principal); ok {
			return p
		}
	}
	return service.Principal{}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
