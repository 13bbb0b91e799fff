package clients

import (
	"slices"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-sso-server/internal/errors"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrClientNotFound = apperrors.New(apperrors.KindAuthentication, "client not found")
	ErrInvalidScope   = apperrors.New(apperrors.KindValidation, "scope not allowed for client")
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// Client is a registered OAuth2 client. Only the bcrypt hash of the secret is stored.
type Client struct {
	ID            string                `json:"id"`
	Type          ClientType            `json:"type"`
	Name          string                `json:"name"`
	SecretHash    string                `json:"secret_hash,omitempty"`
	RedirectURIs  []string              `json:"redirect_uris"`
	GrantTypes    []oauth2.GrantType    `json:"grant_types"`
	ResponseTypes []oauth2.ResponseType `json:"response_types"`
	Scopes        []string              `json:"scopes"`
	TenantID      string                `json:"tenant_id,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// SetSecret stores the bcrypt hash of secret
func (c *Client) SetSecret(secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.SecretHash = string(hash)
	return nil
}

// CheckSecret compares secret with the stored hash. Clients without a hash
// never authenticate with a secret.
func (c *Client) CheckSecret(secret string) bool {
	if c.SecretHash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) == nil
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requestedScopes string) error {
	for _, scope := range strings.Fields(requestedScopes) {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

func (c *Client) HasRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

func (c *Client) AllowsGrant(grant oauth2.GrantType) bool {
	return slices.Contains(c.GrantTypes, grant)
}

func (c *Client) AllowsResponseType(rt oauth2.ResponseType) bool {
	return slices.Contains(c.ResponseTypes, rt)
}
