package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/txqueue/config"
	"github.com/alfanzaky/txqueue/internal/domain"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:   "test-secret",
		Issuer:         "txqueue",
		Audience:       "txqueue-operators",
		AccessTokenTTL: time.Hour,
	}
}

func TestJWTAuthService_RoundTrip(t *testing.T) {
	svc := NewJWTAuthService(testAuthConfig())

	token, err := svc.GenerateAccessToken("ops-bot", "operator")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-bot", claims.Subject)
	assert.Equal(t, domain.RoleOperator, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestJWTAuthService_UnknownRoleBecomesViewer(t *testing.T) {
	svc := NewJWTAuthService(testAuthConfig())

	token, err := svc.GenerateAccessToken("dashboard", "ADMIN")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleViewer, claims.Role)
}

func TestJWTAuthService_Rejects(t *testing.T) {
	svc := NewJWTAuthService(testAuthConfig())

	_, err := svc.GenerateAccessToken("  ", domain.RoleOperator)
	assert.Error(t, err)

	_, err = svc.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := testAuthConfig()
	other.AccessSecret = "other-secret"
	foreign, err := NewJWTAuthService(other).GenerateAccessToken("ops", domain.RoleOperator)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongAudience := testAuthConfig()
	wrongAudience.Audience = "someone-else"
	foreign, err = NewJWTAuthService(wrongAudience).GenerateAccessToken("ops", domain.RoleOperator)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTAuthService_Expired(t *testing.T) {
	cfg := testAuthConfig()
	svc := NewJWTAuthService(cfg)

	past := time.Now().Add(-2 * time.Hour)
	claims := &customClaims{
		Role: domain.RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AccessSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
