package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-that-is-32-chars-long"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:                   testSecret,
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
		BCryptCost:                  4,
	}
}

func newTestService(t *testing.T, now func() time.Time) *hmacJWTService {
	t.Helper()
	svc, err := newHMACJWTService(testAuthConfig(), now)
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_Validation(t *testing.T) {
	t.Parallel()

	cfg := testAuthConfig()
	cfg.JWTSecret = "too-short"
	_, err := NewJWTService(cfg)
	assert.Error(t, err)

	cfg = testAuthConfig()
	cfg.TokenLifetimeMinutes = 0
	_, err = NewJWTService(cfg)
	assert.Error(t, err)

	svc, err := NewJWTService(testAuthConfig())
	require.NoError(t, err)
	assert.Equal(t, time.Hour, svc.AccessTokenLifetime())
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, func() time.Time { return fixedTime })
	userID := uuid.New()

	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	issuer := newTestService(t, func() time.Time { return fixedTime })

	access, err := issuer.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	refresh, err := issuer.GenerateRefreshToken(context.Background(), userID)
	require.NoError(t, err)

	otherCfg := testAuthConfig()
	otherCfg.JWTSecret = "wrong-secret-that-is-long-enough-for-testing"
	otherIssuer, err := newHMACJWTService(otherCfg, func() time.Time { return fixedTime })
	require.NoError(t, err)
	forged, err := otherIssuer.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"uid":  userID.String(),
		"type": TokenTypeAccess,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		at      time.Time
		wantErr error
	}{
		{name: "valid", token: access, at: fixedTime.Add(time.Minute)},
		{name: "within clock skew", token: access, at: fixedTime.Add(61 * time.Minute)},
		{name: "expired", token: access, at: fixedTime.Add(2 * time.Hour), wantErr: ErrExpiredToken},
		{name: "wrong signature", token: forged, at: fixedTime, wantErr: ErrInvalidToken},
		{name: "malformed", token: "not.a.jwt", at: fixedTime, wantErr: ErrInvalidToken},
		{name: "alg none", token: noneToken, at: fixedTime, wantErr: ErrInvalidToken},
		{name: "refresh token", token: refresh, at: fixedTime, wantErr: ErrWrongTokenType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			validator := newTestService(t, func() time.Time { return at })
			claims, err := validator.ValidateToken(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
		})
	}
}

func TestValidateRefreshToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	issuer := newTestService(t, func() time.Time { return fixedTime })

	refresh, err := issuer.GenerateRefreshToken(context.Background(), userID)
	require.NoError(t, err)
	access, err := issuer.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	claims, err := issuer.ValidateRefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
	assert.Equal(t, fixedTime.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())

	_, err = issuer.ValidateRefreshToken(context.Background(), access)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = issuer.ValidateRefreshToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	later := newTestService(t, func() time.Time { return fixedTime.Add(48 * time.Hour) })
	_, err = later.ValidateRefreshToken(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrExpiredRefreshToken)
}

func TestTokensHaveUniqueIDs(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, time.Now)
	userID := uuid.New()

	a, err := svc.GenerateRefreshToken(context.Background(), userID)
	require.NoError(t, err)
	b, err := svc.GenerateRefreshToken(context.Background(), userID)
	require.NoError(t, err)

	ca, err := svc.ValidateRefreshToken(context.Background(), a)
	require.NoError(t, err)
	cb, err := svc.ValidateRefreshToken(context.Background(), b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}
