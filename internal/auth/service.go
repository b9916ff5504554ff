package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// OwnerIDPrefix starts every generated owner id.
const OwnerIDPrefix = "own_"

// Service starts and validates sessions.
type Service struct {
	jwtService *JWTService
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService *JWTService
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{jwtService: cfg.JWTService}
}

// StartSession issues a token for a new owner. When existing is a valid or
// merely expired token of this service, the token is renewed for the same
// owner instead.
func (s *Service) StartSession(existing string) (*TokenResponse, error) {
	owner, renewed := "", false
	if existing != "" {
		claims, err := s.jwtService.ValidateSessionToken(existing)
		switch {
		case err == nil:
			owner, renewed = claims.OwnerID, true
		case errors.Is(err, ErrAccessTokenExpired):
			if claims, err := s.jwtService.ValidateExpiredSessionToken(existing); err == nil {
				owner, renewed = claims.OwnerID, true
			}
		}
	}
	if owner == "" {
		owner = NewOwnerID()
	}

	token, expiresAt, err := s.jwtService.GenerateSessionToken(owner)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(s.jwtService.clock.Now()).Seconds()),
		OwnerID:     owner,
		Renewed:     renewed,
	}, nil
}

// ValidateAccessToken returns the owner id carried by a session token.
func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.jwtService.ValidateSessionToken(token)
	if err != nil {
		return "", err
	}
	return claims.OwnerID, nil
}

// NewOwnerID returns a fresh anonymous owner id.
func NewOwnerID() string {
	return OwnerIDPrefix + uuid.NewString()
}
