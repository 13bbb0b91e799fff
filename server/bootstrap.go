package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso-server/clients"
	"github.com/jrsteele09/go-sso-server/internal/utils"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/users"
)

const (
	FirstPartyClientName = "Rehab ERP"
	firstPartyCallback   = "/callback"
	generatedSecretLen   = 32
)

// InitialiseSystem makes sure the first-party client and, when configured, the
// bootstrap admin user exist. Existing records are never overwritten.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	if err := s.ensureFirstPartyClient(ctx); err != nil {
		return fmt.Errorf("[Server.InitialiseSystem] first-party client: %w", err)
	}
	if err := s.ensureAdminUser(); err != nil {
		return fmt.Errorf("[Server.InitialiseSystem] admin user: %w", err)
	}
	return nil
}

func (s *Server) ensureFirstPartyClient(ctx context.Context) error {
	clientID := s.config.GetClientCredentialID()
	if _, err := s.repos.Clients.Get(ctx, clientID); err == nil {
		s.logger.Debug().Str("client_id", clientID).Msg("first-party client already exists")
		return nil
	} else if !errors.Is(err, clients.ErrClientNotFound) {
		return err
	}

	secret := s.config.GetClientCredentialSecret()
	generated := secret == ""
	if generated {
		var err error
		if secret, err = utils.RandomString(generatedSecretLen); err != nil {
			return err
		}
	}

	baseURL := s.config.GetBaseURL()
	client := &clients.Client{
		ID:           clientID,
		Type:         clients.ClientTypeConfidential,
		Name:         FirstPartyClientName,
		RedirectURIs: []string{baseURL + firstPartyCallback},
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.ImplicitGrant,
			oauth2.ClientCredentialsGrant,
			oauth2.PasswordGrant,
			oauth2.RefreshTokenGrant,
		},
		ResponseTypes: []oauth2.ResponseType{oauth2.CodeResponseType, oauth2.TokenResponseType},
		Scopes:        []string{"openid", "profile", "email", "api"},
		CreatedAt:     time.Now().UTC(),
	}
	if err := client.SetSecret(secret); err != nil {
		return err
	}
	if err := s.repos.Clients.Upsert(ctx, client); err != nil {
		return err
	}

	event := s.logger.Info().Str("client_id", clientID).Str("redirect_uri", client.RedirectURIs[0])
	if generated {
		// Shown once; only the hash is stored
		event = event.Str("client_secret", secret)
	}
	event.Msg("created first-party client")
	return nil
}

func (s *Server) ensureAdminUser() error {
	email := s.config.GetBootstrapAdminEmail()
	if email == "" {
		return nil
	}
	if _, err := s.repos.Users.GetByEmail(email); err == nil {
		s.logger.Debug().Str("email", email).Msg("admin user already exists")
		return nil
	} else if !errors.Is(err, users.ErrUserNotFound) {
		return err
	}

	password := s.config.GetBootstrapAdminPassword()
	generated := password == ""
	if generated {
		var err error
		if password, err = utils.RandomString(16); err != nil {
			return err
		}
	} else if err := users.ValidatePasswordStrength(password); err != nil {
		return err
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &users.User{
		Email:        email,
		Username:     adminRole,
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		Roles:        []string{adminRole},
		DateJoined:   time.Now().UTC(),
	}
	if err := s.repos.Users.Upsert(admin); err != nil {
		return err
	}

	event := s.logger.Info().Str("email", email)
	if generated {
		event = event.Str("password", password)
	}
	event.Msg("created admin user")
	return nil
}
