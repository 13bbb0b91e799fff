package oauth2

// Endpoint paths, relative to the issuer. Discovery and the router both use these.
const (
	PathWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	PathWellKnownJWKS         = "/.well-known/jwks.json"
	PathAuthorize             = "/oauth2/authorize"
	PathLogin                 = "/oauth2/login"
	PathToken                 = "/oauth2/token"
	PathIntrospect            = "/oauth2/introspect"
	PathRevoke                = "/oauth2/revoke"
	PathRegister              = "/oauth2/register"
	PathPKCEVerify            = "/oauth2/pkce/verify"
	PathUserInfo              = "/userinfo"
)
