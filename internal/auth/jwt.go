package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Session tokens are the only credential. They carry an anonymous owner id
// that keys the owner's stored answers and transcript, so renewing a session
// keeps the same subject.

// SessionTokenExpiry is how long a session token is valid.
const SessionTokenExpiry = 30 * 24 * time.Hour

// Predefined JWT errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
)

// SessionClaims represents the claims in a session token.
type SessionClaims struct {
	jwt.RegisteredClaims

	// OwnerID keys the owner's stored records. Equal to Subject.
	OwnerID string `json:"oid"`
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	expiry     time.Duration
	clock      clockwork.Clock
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the HS256 secret.
	SigningKey string

	// Issuer is the issuer claim, e.g. "microsafety".
	Issuer string

	// Audience is the audience claim, e.g. "microsafety-api".
	Audience string

	// Expiry overrides the token lifetime.
	// Default: SessionTokenExpiry
	Expiry time.Duration

	// Clock stamps issued-at and expiry.
	// Default: real clock
	Clock clockwork.Clock
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = SessionTokenExpiry
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		expiry:     cfg.Expiry,
		clock:      cfg.Clock,
	}
}

// GenerateSessionToken signs a session token for ownerID.
func (s *JWTService) GenerateSessionToken(ownerID string) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.expiry)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   ownerID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		OwnerID: ownerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateSessionToken validates a session token and returns the claims.
func (s *JWTService) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	return s.parse(tokenString,
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
}

// ValidateExpiredSessionToken checks signature, issuer and audience but not
// the time claims. It is only used to renew an expired session.
func (s *JWTService) ValidateExpiredSessionToken(tokenString string) (*SessionClaims, error) {
	claims, err := s.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != s.issuer || !slices.Contains(claims.Audience, s.audience) {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" || claims.OwnerID != claims.Subject {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
