package auth

import (
	"testing"
	"time"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/domain/entitlement"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
	"github.com/golang-jwt/jwt/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type SessionManagerSuite struct {
	suite.Suite
	cfg     *config.Configuration
	manager *SessionManager
}

func TestSessionManager(t *testing.T) {
	suite.Run(t, new(SessionManagerSuite))
}

func (s *SessionManagerSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	s.manager = NewSessionManager(s.cfg)
}

func (s *SessionManagerSuite) TestIssueAndParse() {
	end := time.Date(2030, 2, 10, 0, 0, 0, 0, time.UTC)
	snapshot := &entitlement.Snapshot{
		Tier:    lo.ToPtr(types.TierTier2),
		Status:  lo.ToPtr(types.EntitlementStatusActive),
		EndDate: lo.ToPtr(end),
	}

	token, expiresAt, err := s.manager.Issue("acc_1", types.RolePremium, snapshot)
	s.Require().NoError(err)
	s.NotEmpty(token)

	claims, err := s.manager.Parse(token)
	s.Require().NoError(err)
	s.Equal("acc_1", claims.AccountID)
	s.Equal(types.RolePremium, claims.Role)
	s.Require().True(claims.Snapshot.IsComplete())
	s.Equal(types.TierTier2, *claims.Snapshot.Tier)
	s.True(end.Equal(*claims.Snapshot.EndDate))
	s.Equal(expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func (s *SessionManagerSuite) TestIssueWithoutSnapshot() {
	token, _, err := s.manager.Issue("acc_1", types.RoleUser, nil)
	s.Require().NoError(err)

	claims, err := s.manager.Parse(token)
	s.Require().NoError(err)
	s.Nil(claims.Snapshot)
	s.False(claims.Snapshot.IsComplete())
}

func (s *SessionManagerSuite) TestIssueRequiresAccount() {
	_, _, err := s.manager.Issue("", types.RoleUser, nil)
	s.True(ierr.IsValidation(err))
}

func (s *SessionManagerSuite) TestParseRejectsExpired() {
	past := s.manager.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) })
	token, _, err := past.Issue("acc_1", types.RoleUser, nil)
	s.Require().NoError(err)

	_, err = s.manager.Parse(token)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *SessionManagerSuite) TestParseRejectsOtherSecret() {
	other := config.GetDefaultConfig()
	other.Auth.Secret = "another-secret"
	token, _, err := NewSessionManager(other).Issue("acc_1", types.RoleAdmin, nil)
	s.Require().NoError(err)

	_, err = s.manager.Parse(token)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *SessionManagerSuite) TestParseRejectsOtherIssuer() {
	other := config.GetDefaultConfig()
	other.Auth.Issuer = "elsewhere"
	token, _, err := NewSessionManager(other).Issue("acc_1", types.RoleAdmin, nil)
	s.Require().NoError(err)

	_, err = s.manager.Parse(token)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *SessionManagerSuite) TestParseRejectsUnsignedToken() {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"account_id": "acc_1",
		"role":       "admin",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	_, err = s.manager.Parse(token)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *SessionManagerSuite) TestParseUnknownRoleFallsBackToUser() {
	token, _, err := s.manager.Issue("acc_1", types.Role("root"), nil)
	s.Require().NoError(err)

	claims, err := s.manager.Parse(token)
	s.Require().NoError(err)
	s.Equal(types.RoleUser, claims.Role)
}
