package sessions

import (
	"time"
)

// Status of a session. The only transition is active -> ended.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// Metadata describes the device and network a session was created from
type Metadata struct {
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

// Claims is the user claim payload embedded in every token of the session
type Claims struct {
	TenantID string   `json:"tenant_id,omitempty"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	Scope    string   `json:"scope,omitempty"`
	Nonce    string   `json:"nonce,omitempty"`
}

// Session is the stored record for one authenticated login.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	TenantID     string     `json:"tenant_id,omitempty"`
	Claims       Claims     `json:"claims"`
	Metadata     Metadata   `json:"metadata"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
}

// Summary is a session without its token secrets
type Summary struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Metadata     Metadata  `json:"metadata"`
}

func (s *Session) Summary() Summary {
	return Summary{
		SessionID:    s.ID,
		UserID:       s.UserID,
		TenantID:     s.TenantID,
		ClientID:     s.Claims.ClientID,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		Metadata:     s.Metadata,
	}
}

// User is the identity a verified session speaks for
type User struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id,omitempty"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (s *Session) User() *User {
	return &User{
		ID:       s.UserID,
		TenantID: s.TenantID,
		Email:    s.Claims.Email,
		Name:     s.Claims.Name,
		Roles:    s.Claims.Roles,
	}
}

// Tokens is returned once, when a session is created
type Tokens struct {
	SessionID    string `json:"session_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type VerifyResult struct {
	Valid   bool
	Session *Session
	User    *User
	Err     error
}

type RefreshResult struct {
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
