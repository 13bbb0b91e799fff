package auth

import (
	"context"

	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/sessions"
)

// supportedGrantTypes is the single list both the token dispatcher and the
// discovery document are built from.
var supportedGrantTypes = []oauth2.GrantType{
	oauth2.AuthorizationCodeGrant,
	oauth2.ImplicitGrant,
	oauth2.ClientCredentialsGrant,
	oauth2.PasswordGrant,
	oauth2.RefreshTokenGrant,
}

// responseTypeGrants maps each authorization endpoint response type to the grant
// a client must be registered for to use it.
var responseTypeGrants = map[oauth2.ResponseType]oauth2.GrantType{
	oauth2.CodeResponseType:  oauth2.AuthorizationCodeGrant,
	oauth2.TokenResponseType: oauth2.ImplicitGrant,
}

var supportedResponseTypes = []oauth2.ResponseType{
	oauth2.CodeResponseType,
	oauth2.TokenResponseType,
}

var supportedCodeChallengeMethods = []oauth2.CodeMethodType{
	oauth2.CodeMethodTypeS256,
	oauth2.CodeMethodTypePlain,
}

var supportedAuthMethods = []string{"client_secret_post", "client_secret_basic", "none"}

type grantHandler func(ctx context.Context, req oauth2.TokenRequest, metadata sessions.Metadata) (*oauth2.TokenResponse, error)

// tokenEndpointGrants are the grants redeemable at the token endpoint. The
// implicit grant is issued from the authorization endpoint only.
func (as *AuthorizationService) tokenEndpointGrants() map[oauth2.GrantType]grantHandler {
	return map[oauth2.GrantType]grantHandler{
		oauth2.AuthorizationCodeGrant: as.Exchange,
		oauth2.ClientCredentialsGrant: func(ctx context.Context, req oauth2.TokenRequest, _ sessions.Metadata) (*oauth2.TokenResponse, error) {
			return as.ClientCredentials(ctx, req)
		},
		oauth2.PasswordGrant: as.Password,
		oauth2.RefreshTokenGrant: func(ctx context.Context, req oauth2.TokenRequest, _ sessions.Metadata) (*oauth2.TokenResponse, error) {
			return as.Refresh(ctx, req)
		},
	}
}

// SupportedGrantTypes lists every grant this server implements
func SupportedGrantTypes() []oauth2.GrantType {
	return append([]oauth2.GrantType(nil), supportedGrantTypes...)
}
