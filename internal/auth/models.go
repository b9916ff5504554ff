// Package auth issues and validates the anonymous session tokens that
// identify a dashboard owner.
package auth

// TokenResponse represents the response after a session is started.
type TokenResponse struct {
	// AccessToken is the session JWT.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// OwnerID is the anonymous owner the token identifies.
	OwnerID string `json:"ownerId"`

	// Renewed is true when an existing session was extended.
	Renewed bool `json:"renewed"`
}
