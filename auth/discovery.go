package auth

import (
	"github.com/jrsteele09/go-sso-server/oauth2"
)

// Discovery returns the OpenID Provider Metadata. Grant and response types come
// from the same tables the token and authorize endpoints dispatch on.
func (as *AuthorizationService) Discovery() *oauth2.DiscoveryDocument {
	issuer := as.codec.Issuer()
	return &oauth2.DiscoveryDocument{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + oauth2.PathAuthorize,
		TokenEndpoint:                     issuer + oauth2.PathToken,
		UserInfoEndpoint:                  issuer + oauth2.PathUserInfo,
		JWKSURI:                           issuer + oauth2.PathWellKnownJWKS,
		RegistrationEndpoint:              issuer + oauth2.PathRegister,
		IntrospectionEndpoint:             issuer + oauth2.PathIntrospect,
		RevocationEndpoint:                issuer + oauth2.PathRevoke,
		ScopesSupported:                   append([]string(nil), as.scopes...),
		ResponseTypesSupported:            append([]oauth2.ResponseType(nil), supportedResponseTypes...),
		ResponseModesSupported:            []oauth2.ResponseModeType{oauth2.QueryResponseMode, oauth2.FragmentResponseMode},
		GrantTypesSupported:               SupportedGrantTypes(),
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{as.codec.Signer().SigningMethod().Alg()},
		TokenEndpointAuthMethodsSupported: append([]string(nil), supportedAuthMethods...),
		CodeChallengeMethodsSupported:     append([]oauth2.CodeMethodType(nil), supportedCodeChallengeMethods...),
		ClaimsSupported: []string{
			"sub", "iss", "aud", "exp", "iat", "jti", "sid", "nonce",
			"email", "name", "roles", "tenant",
		},
	}
}
