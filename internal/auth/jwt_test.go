package auth_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsafety/microsafety/internal/auth"
)

func newJWT(key, issuer, audience string, clock clockwork.Clock) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
		Clock:      clock,
	})
}

func TestJWTService_GenerateAndValidateSessionToken(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newJWT("test-secret-key-for-testing-only", "microsafety", "microsafety-api", clock)

	token, expiresAt, err := svc.GenerateSessionToken("own_123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, clock.Now().Add(auth.SessionTokenExpiry), expiresAt)

	claims, err := svc.ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "own_123", claims.OwnerID)
	assert.Equal(t, "own_123", claims.Subject)
	assert.Equal(t, "microsafety", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newJWT("test-secret-key-for-testing-only", "microsafety", "microsafety-api", nil)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateSessionToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Mismatches(t *testing.T) {
	issuer := newJWT("key-one", "microsafety", "microsafety-api", nil)
	token, _, err := issuer.GenerateSessionToken("own_1")
	require.NoError(t, err)

	tests := []struct {
		name      string
		validator *auth.JWTService
	}{
		{"wrong signing key", newJWT("key-two", "microsafety", "microsafety-api", nil)},
		{"wrong issuer", newJWT("key-one", "someone-else", "microsafety-api", nil)},
		{"wrong audience", newJWT("key-one", "microsafety", "other-api", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validator.ValidateSessionToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)

			_, err = tt.validator.ValidateExpiredSessionToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newJWT("k", "microsafety", "microsafety-api", clock)

	token, _, err := svc.GenerateSessionToken("own_1")
	require.NoError(t, err)

	clock.Advance(auth.SessionTokenExpiry + time.Minute)

	_, err = svc.ValidateSessionToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)

	claims, err := svc.ValidateExpiredSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "own_1", claims.OwnerID)
}
