package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates the three token kinds a session carries
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
	TypeID      Type = "id"
)

// Claims is the signed payload of every token. Timestamps are absolute
// (NumericDate, seconds) and only ever compared against the verifying
// server's clock.
type Claims struct {
	SessionID string   `json:"sid,omitempty"`
	Type      Type     `json:"type"`
	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TenantID  string   `json:"tenant,omitempty"`
	Nonce     string   `json:"nonce,omitempty"`
	Email     string   `json:"email,omitempty"`
	Name      string   `json:"name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Expired reports whether the token is past its expiry at now.
// A token without an expiry is treated as expired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Time)
}

// ExpiresIn is the remaining lifetime in whole seconds, never negative
func (c *Claims) ExpiresIn(now time.Time) int {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}
