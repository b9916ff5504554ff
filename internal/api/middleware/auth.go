package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/microsafety/microsafety/internal/api/models"
	"github.com/microsafety/microsafety/internal/auth"
)

var (
	ErrMissingAuthorization   = errors.New("missing authorization header")
	ErrMalformedAuthorization = errors.New("invalid authorization header format")
)

// ownerIDKey is the context key for the authenticated session owner.
type ownerIDKey struct{}

// TokenValidator resolves a session token to its owner ID.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// Auth rejects requests without a valid bearer session token and stores the
// token's owner ID in the request context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				writeUnauthorized(w, r, err.Error())
				return
			}

			ownerID, err := validator.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "session token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					writeUnauthorized(w, r, "invalid session token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthorization
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMalformedAuthorization
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrMalformedAuthorization
	}
	return token, nil
}

// writeUnauthorized writes a 401 problem.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// WithOwnerID returns a copy of ctx carrying the owner ID.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey{}, ownerID)
}

// GetOwnerID returns the authenticated owner ID, or "" when unauthenticated.
func GetOwnerID(ctx context.Context) string {
	if id, ok := ctx.Value(ownerIDKey{}).(string); ok {
		return id
	}
	return ""
}
