package oauth2

// TokenIntrospection represents the metadata information of an OAuth 2.0 token (RFC 7662).
// The 'active' field indicates the state of the token - if it's false, other fields are omitted.
type TokenIntrospection struct {
	Active    bool     `json:"active"`               // True or false - Is the token valid
	Scope     *string  `json:"scope,omitempty"`      // Scopes granted to the token
	ClientID  *string  `json:"client_id,omitempty"`  // Client the token was issued to
	TokenType *string  `json:"token_type,omitempty"` // access or refresh
	Exp       *int64   `json:"exp,omitempty"`        // Expiration
	Iat       *int64   `json:"iat,omitempty"`        // Issued at time
	Iss       *string  `json:"iss,omitempty"`        // Issuer of the token
	Sub       *string  `json:"sub,omitempty"`        // Users unique ID, or client ID for client credentials
	Jti       *string  `json:"jti,omitempty"`        // Token ID
	Sid       *string  `json:"sid,omitempty"`        // SSO session the token belongs to
	Roles     []string `json:"roles,omitempty"`      // Roles assigned to the User
	Tenant    string   `json:"tenant,omitempty"`     // Tenant
}

// UserInfo is the OIDC userinfo response
type UserInfo struct {
	Sub    string   `json:"sub"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Tenant string   `json:"tenant,omitempty"`
	Sid    string   `json:"sid,omitempty"`
}
