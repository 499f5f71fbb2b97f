package auth

import (
	"fmt"
	"time"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/domain/entitlement"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
	"github.com/golang-jwt/jwt/v4"
)

// Claims is what a session token says about its holder
type Claims struct {
	AccountID string
	Role      types.Role
	// Snapshot is nil for sessions issued before the entitlement was known
	Snapshot  *entitlement.Snapshot
	ExpiresAt time.Time
}

type sessionClaims struct {
	AccountID   string                `json:"account_id"`
	Role        string                `json:"role"`
	Entitlement *entitlement.Snapshot `json:"entitlement,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager signs and verifies HS256 session tokens
type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(cfg *config.Configuration) *SessionManager {
	ttl := cfg.Auth.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		secret: []byte(cfg.Auth.Secret),
		issuer: cfg.Auth.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the manager that stamps tokens with now
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	c := *m
	c.now = now
	return &c
}

// Issue signs a session for accountID. A nil snapshot yields a token without entitlement claims.
func (m *SessionManager) Issue(accountID string, role types.Role, snapshot *entitlement.Snapshot) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, ierr.NewError("account_id is required").
			WithHint("Account ID is required to issue a session").
			Mark(ierr.ErrValidation)
	}

	issuedAt := m.now().UTC()
	expiresAt := issuedAt.Add(m.ttl)

	claims := sessionClaims{
		AccountID:   accountID,
		Role:        role.String(),
		Entitlement: snapshot,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, ierr.WithError(err).
			WithHint("Failed to sign session").
			Mark(ierr.ErrSystem)
	}
	return token, expiresAt, nil
}

// Parse verifies token and returns its claims
func (m *SessionManager) Parse(token string) (*Claims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", t.Header["alg"])).
				Mark(ierr.ErrPermissionDenied)
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Session is invalid or expired").
			Mark(ierr.ErrPermissionDenied)
	}
	if !parsed.Valid {
		return nil, ierr.NewError("invalid session claims").
			WithHint("Session is invalid or expired").
			Mark(ierr.ErrPermissionDenied)
	}
	if claims.AccountID == "" {
		return nil, ierr.NewError("session missing account id").
			WithHint("Session is invalid").
			Mark(ierr.ErrPermissionDenied)
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, ierr.NewError("session issued elsewhere").
			WithHint("Session is invalid").
			WithReportableDetails(map[string]any{"issuer": claims.Issuer}).
			Mark(ierr.ErrPermissionDenied)
	}

	result := &Claims{
		AccountID: claims.AccountID,
		Role:      types.ParseRole(claims.Role),
		Snapshot:  claims.Entitlement,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
