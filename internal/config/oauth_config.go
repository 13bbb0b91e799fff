package config

import "time"

const (
	signingSecretVar  = "SSO_SIGNING_SECRET"
	signingKeyFileVar = "SSO_SIGNING_KEY_FILE"
	sessionTimeoutVar = "SESSION_TIMEOUT"
	refreshTimeoutVar = "REFRESH_TOKEN_TIMEOUT"
	clientSecretVar   = "CLIENT_SECRET"
	clientIDVar       = "CLIENT_ID"
)

type OAuthConfig interface {
	GetSigningSecret() string
	GetSigningKeyFile() string
	GetSigningKeyID() string
	GetSessionTimeout() time.Duration
	GetRefreshTokenTimeout() time.Duration
	GetEndedSessionRetention() time.Duration
	GetAuthCodeTimeout() time.Duration
	GetClientCredentialID() string
	GetClientCredentialSecret() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetSigningSecret() string {
	return GetEnv(signingSecretVar, "")
}

// GetSessionTimeout is both the live session TTL and the access token lifetime
// GetSigningKeyFile is a PEM RSA private key. When set, tokens are RS256 and
// the public key is published at the JWKS endpoint.
func (OAuth) GetSigningKeyFile() string {
	return GetEnv(signingKeyFileVar, "")
}

func (OAuth) GetSigningKeyID() string {
	return GetEnv("SSO_SIGNING_KEY_ID", "sso-1")
}

func (OAuth) GetSessionTimeout() time.Duration {
	return GetEnvMillis(sessionTimeoutVar, 3_600_000*time.Millisecond)
}

func (OAuth) GetRefreshTokenTimeout() time.Duration {
	return GetEnvMillis(refreshTimeoutVar, 604_800_000*time.Millisecond)
}

func (OAuth) GetEndedSessionRetention() time.Duration {
	return 24 * time.Hour
}

func (OAuth) GetAuthCodeTimeout() time.Duration {
	return 10 * time.Minute
}

// GetClientCredentialID is the id of the first-party client registered at startup
func (OAuth) GetClientCredentialID() string {
	return GetEnv(clientIDVar, "rehab-erp")
}

func (OAuth) GetClientCredentialSecret() string {
	return GetEnv(clientSecretVar, "")
}
