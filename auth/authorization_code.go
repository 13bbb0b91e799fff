package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso-server/internal/utils"
	"github.com/jrsteele09/go-sso-server/kvstore"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/sessions"
)

const codeGenerationLength = 32

// AuthorizationCode is the pending state of an authorization code flow. UserID
// is empty until the user has logged in.
type AuthorizationCode struct {
	Code                string                `json:"code"`
	ClientID            string                `json:"client_id"`
	RedirectURI         string                `json:"redirect_uri"`
	Scope               string                `json:"scope,omitempty"`
	State               string                `json:"state,omitempty"`
	Nonce               string                `json:"nonce,omitempty"`
	CodeChallenge       string                `json:"code_challenge,omitempty"`
	CodeChallengeMethod oauth2.CodeMethodType `json:"code_challenge_method,omitempty"`
	TenantID            string                `json:"tenant_id,omitempty"`
	UserID              string                `json:"user_id,omitempty"`
	Claims              sessions.Claims       `json:"claims"`
	CreatedAt           time.Time             `json:"created_at"`
	ExpiresAt           time.Time             `json:"expires_at"`
}

func (c *AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// codeStore keeps authorization codes in the key-value store
type codeStore struct {
	store kvstore.Store
}

func (cs codeStore) create(ctx context.Context, code *AuthorizationCode) error {
	value, err := utils.RandomString(codeGenerationLength)
	if err != nil {
		return err
	}
	code.Code = value
	return cs.put(ctx, code, code.ExpiresAt.Sub(code.CreatedAt))
}

func (cs codeStore) put(ctx context.Context, code *AuthorizationCode, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidOrExpiredCode
	}
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal authorization code: %w", err)
	}
	return cs.store.Set(ctx, kvstore.AuthCodePrefix+code.Code, data, ttl)
}

func (cs codeStore) get(ctx context.Context, code string) (*AuthorizationCode, error) {
	data, err := cs.store.Get(ctx, kvstore.AuthCodePrefix+code)
	return decodeCode(data, err)
}

// take removes the code as it reads it; a second take of the same code fails.
func (cs codeStore) take(ctx context.Context, code string) (*AuthorizationCode, error) {
	data, err := cs.store.Take(ctx, kvstore.AuthCodePrefix+code)
	return decodeCode(data, err)
}

func decodeCode(data []byte, err error) (*AuthorizationCode, error) {
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrExpiredCode, err)
	}
	var code AuthorizationCode
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, ErrInvalidOrExpiredCode
	}
	return &code, nil
}
