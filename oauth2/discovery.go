package oauth2

// DiscoveryDocument is the OpenID Provider Metadata served at
// /.well-known/openid-configuration
type DiscoveryDocument struct {
	Issuer                            string             `json:"issuer"`
	AuthorizationEndpoint             string             `json:"authorization_endpoint"`
	TokenEndpoint                     string             `json:"token_endpoint"`
	UserInfoEndpoint                  string             `json:"userinfo_endpoint"`
	JWKSURI                           string             `json:"jwks_uri"`
	RegistrationEndpoint              string             `json:"registration_endpoint"`
	IntrospectionEndpoint             string             `json:"introspection_endpoint"`
	RevocationEndpoint                string             `json:"revocation_endpoint"`
	ScopesSupported                   []string           `json:"scopes_supported"`
	ResponseTypesSupported            []ResponseType     `json:"response_types_supported"`
	ResponseModesSupported            []ResponseModeType `json:"response_modes_supported"`
	GrantTypesSupported               []GrantType        `json:"grant_types_supported"`
	SubjectTypesSupported             []string           `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string           `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string           `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []CodeMethodType   `json:"code_challenge_methods_supported"`
	ClaimsSupported                   []string           `json:"claims_supported"`
}
