package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso-server/clients"
	"github.com/jrsteele09/go-sso-server/internal/utils"
	"github.com/jrsteele09/go-sso-server/oauth2"
)

const (
	clientSecretLength = 32
	authMethodNone     = "none"
	authMethodPost     = "client_secret_post"
)

// RegisterClient performs dynamic client registration (RFC 7591). The plain
// secret is returned in the response only; the client record keeps its bcrypt hash.
func (as *AuthorizationService) RegisterClient(ctx context.Context, req oauth2.RegistrationRequest) (*oauth2.RegistrationResponse, error) {
	if err := as.validator.Struct(req); err != nil {
		return nil, err
	}

	grants := req.GrantTypes
	if len(grants) == 0 {
		grants = []oauth2.GrantType{oauth2.AuthorizationCodeGrant, oauth2.RefreshTokenGrant}
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		for _, rt := range supportedResponseTypes {
			if slices.Contains(grants, responseTypeGrants[rt]) {
				responseTypes = append(responseTypes, rt)
			}
		}
	}
	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = authMethodPost
	}
	scopes := strings.Fields(req.Scope)
	if len(scopes) == 0 {
		scopes = append(scopes, as.scopes...)
	}
	for _, scope := range scopes {
		if !slices.Contains(as.scopes, scope) {
			return nil, fmt.Errorf("%w: %q is not offered by this server", ErrInvalidScope, scope)
		}
	}

	client := &clients.Client{
		ID:            uuid.NewString(),
		Type:          clients.ClientTypeConfidential,
		Name:          req.ClientName,
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    grants,
		ResponseTypes: responseTypes,
		Scopes:        scopes,
		CreatedAt:     as.nowTime(),
	}
	if authMethod == authMethodNone {
		client.Type = clients.ClientTypePublic
	}

	for _, rt := range responseTypes {
		grant := responseTypeGrants[rt]
		if !client.AllowsGrant(grant) {
			return nil, fmt.Errorf("%w: response type %s needs grant type %s", ErrInvalidRequest, rt, grant)
		}
	}
	if client.AllowsGrant(oauth2.AuthorizationCodeGrant) || client.AllowsGrant(oauth2.ImplicitGrant) {
		if len(client.RedirectURIs) == 0 {
			return nil, fmt.Errorf("%w: redirect_uris are required for redirect based grants", ErrInvalidRequest)
		}
	}
	if client.IsPublic() && client.AllowsGrant(oauth2.ClientCredentialsGrant) {
		return nil, fmt.Errorf("%w: public clients cannot use client_credentials", ErrInvalidRequest)
	}

	var secret string
	if !client.IsPublic() {
		var err error
		if secret, err = utils.RandomString(clientSecretLength); err != nil {
			return nil, fmt.Errorf("[AuthorizationService.RegisterClient] generate secret: %w", err)
		}
		if err := client.SetSecret(secret); err != nil {
			return nil, fmt.Errorf("[AuthorizationService.RegisterClient] hash secret: %w", err)
		}
	}

	if err := as.repos.Clients.Upsert(ctx, client); err != nil {
		return nil, fmt.Errorf("[AuthorizationService.RegisterClient] %w", err)
	}
	as.logger.Info().Str("client_id", client.ID).Str("client_type", string(client.Type)).Msg("client registered")

	return &oauth2.RegistrationResponse{
		ClientID:                client.ID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		Scope:                   strings.Join(client.Scopes, " "),
		TokenEndpointAuthMethod: authMethod,
	}, nil
}
