package oauth2

// AuthorizationParameters holds the query parameters of an /oauth2/authorize request.
type AuthorizationParameters struct {
	// ClientID identifies the application requesting authorization.
	ClientID string `validate:"required"`

	// ResponseType is "code" or "token"
	ResponseType ResponseType `validate:"required"`

	// RedirectURI must exactly match a pre-registered URI to prevent open redirects
	RedirectURI string `validate:"required"`

	// Scope is a space separated list validated against the client's allowed scopes
	Scope string

	// State is echoed back in the redirect so the client can detect CSRF
	State string

	// Nonce is copied into the ID token
	Nonce string

	// CodeChallenge is BASE64URL(SHA256(code_verifier)) for S256
	CodeChallenge       string
	CodeChallengeMethod CodeMethodType

	TenantID string
}

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the form body sent to the /oauth2/token endpoint.
type TokenRequest struct {
	GrantType GrantType

	ClientID string

	// ClientSecret is the secret credential for confidential clients.
	// Security: Never log or expose this value
	ClientSecret string

	// Code and RedirectURI are required for the authorization_code grant
	Code        string
	RedirectURI string

	// CodeVerifier must match the code_challenge sent to the authorization endpoint
	CodeVerifier string

	// RefreshToken is required for the refresh_token grant
	RefreshToken string

	// Username and Password are required for the password grant
	Username string
	Password string

	Scope string
}

// RevocationRequest is the body of an RFC 7009 revocation request
type RevocationRequest struct {
	Token         string
	TokenTypeHint TokenTypeHint
	ClientID      string
	ClientSecret  string
}

// IntrospectionRequest is the body of an RFC 7662 introspection request
type IntrospectionRequest struct {
	Token         string
	TokenTypeHint TokenTypeHint
	ClientID      string
	ClientSecret  string
}

// RegistrationRequest is the body of a dynamic client registration (RFC 7591)
type RegistrationRequest struct {
	ClientName    string         `json:"client_name" validate:"required,max=128"`
	RedirectURIs  []string       `json:"redirect_uris" validate:"omitempty,dive,url"`
	GrantTypes    []GrantType    `json:"grant_types" validate:"omitempty,dive,oneof=authorization_code implicit client_credentials password refresh_token"`
	ResponseTypes []ResponseType `json:"response_types" validate:"omitempty,dive,oneof=code token"`
	Scope         string         `json:"scope" validate:"max=512"`

	// TokenEndpointAuthMethod "none" registers a public client
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method" validate:"omitempty,oneof=none client_secret_post client_secret_basic"`
}

// RegistrationResponse is the only place a client secret is ever returned
type RegistrationResponse struct {
	ClientID                string         `json:"client_id"`
	ClientSecret            string         `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64          `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64          `json:"client_secret_expires_at"`
	ClientName              string         `json:"client_name"`
	RedirectURIs            []string       `json:"redirect_uris"`
	GrantTypes              []GrantType    `json:"grant_types"`
	ResponseTypes           []ResponseType `json:"response_types"`
	Scope                   string         `json:"scope"`
	TokenEndpointAuthMethod string         `json:"token_endpoint_auth_method"`
}
