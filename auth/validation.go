package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-sso-server/clients"
	"github.com/jrsteele09/go-sso-server/oauth2"
)

// Validator holds the request validation rules shared by the authorization and
// token endpoints.
type Validator struct {
	structs *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{
		structs: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Struct runs the validate tags on req and reports the failing fields
func (v *Validator) Struct(req any) error {
	err := v.structs.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

// ValidateAuthorizationRequest checks an authorize request against the registered client.
func (v *Validator) ValidateAuthorizationRequest(params *oauth2.AuthorizationParameters, client *clients.Client, requirePKCE bool) error {
	if err := v.Struct(params); err != nil {
		return err
	}
	if !client.HasRedirectURI(params.RedirectURI) {
		return ErrInvalidRedirectURI
	}

	grant, ok := responseTypeGrants[params.ResponseType]
	if !ok {
		return ErrUnsupportedResponseType
	}
	if !client.AllowsResponseType(params.ResponseType) || !client.AllowsGrant(grant) {
		return ErrUnauthorizedClient
	}

	if err := client.ValidateScopes(params.Scope); err != nil {
		return ErrInvalidScope
	}

	if params.ResponseType == oauth2.CodeResponseType {
		return v.ValidatePKCE(params.CodeChallenge, params.CodeChallengeMethod, requirePKCE || client.IsPublic())
	}
	return nil
}

// ValidatePKCE validates PKCE (Proof Key for Code Exchange) parameters
func (v *Validator) ValidatePKCE(codeChallenge string, method oauth2.CodeMethodType, required bool) error {
	if codeChallenge == "" {
		if required {
			return fmt.Errorf("%w: PKCE required: code_challenge must be provided", ErrInvalidRequest)
		}
		if method != "" {
			return fmt.Errorf("%w: code_challenge_method without code_challenge", ErrInvalidRequest)
		}
		return nil
	}

	switch method {
	case oauth2.CodeMethodTypeS256, oauth2.CodeMethodTypePlain, "":
	default:
		return ErrUnsupportedPKCEMethod
	}

	// RFC 7636: 43 to 128 characters
	if len(codeChallenge) < 43 || len(codeChallenge) > 128 {
		return fmt.Errorf("%w: code_challenge length must be between 43 and 128 characters", ErrInvalidRequest)
	}
	return nil
}

// ValidateClientCredentials authenticates a client. Public clients must not send a
// secret; confidential clients must send the right one.
func (v *Validator) ValidateClientCredentials(clientSecret string, client *clients.Client) error {
	if client.IsPublic() {
		if clientSecret != "" {
			return ErrInvalidClientCredentials
		}
		return nil
	}
	if !client.CheckSecret(clientSecret) {
		return ErrInvalidClientCredentials
	}
	return nil
}

// ValidateTokenRequest checks the fields each grant type needs
func (v *Validator) ValidateTokenRequest(req oauth2.TokenRequest) error {
	if req.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidRequest)
	}

	switch req.GrantType {
	case oauth2.AuthorizationCodeGrant:
		if req.Code == "" {
			return fmt.Errorf("%w: code is required", ErrInvalidRequest)
		}
		if req.RedirectURI == "" {
			return fmt.Errorf("%w: redirect_uri is required", ErrInvalidRequest)
		}
		if req.CodeVerifier != "" && (len(req.CodeVerifier) < 43 || len(req.CodeVerifier) > 128) {
			return fmt.Errorf("%w: code_verifier must be between 43 and 128 characters", ErrInvalidRequest)
		}
	case oauth2.RefreshTokenGrant:
		if req.RefreshToken == "" {
			return fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
		}
	case oauth2.PasswordGrant:
		if req.Username == "" || req.Password == "" {
			return fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
		}
	}
	return nil
}
