package oauth2

// TokenResponse represents the response from an OAuth2 token request (RFC 6749 section 5.1).
type TokenResponse struct {
	// AccessToken is the JWT used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// IDToken is the OpenID Connect ID token. Only issued for user sessions.
	IDToken string `json:"id_token,omitempty"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: This is a hint - actual expiration is in the JWT's "exp" claim
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is issued with user sessions, never with client credentials
	RefreshToken string `json:"refresh_token,omitempty"`

	Scope string `json:"scope,omitempty"`

	// SessionID identifies the SSO session the tokens belong to
	SessionID string `json:"session_id,omitempty"`
}
