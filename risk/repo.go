package risk

import (
	"context"
	"time"
)

// AccessLogEntry records one access decision. Denied entries feed the
// failed-attempt signal.
type AccessLogEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address,omitempty"`
	Score     int       `json:"score"`
	Level     Level     `json:"level"`
	Factors   []Factor  `json:"factors"`
	Response  Response  `json:"response"`
	Allowed   bool      `json:"allowed"`
	PolicyID  string    `json:"policy_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type PolicyRepo interface {
	Upsert(ctx context.Context, policy *Policy) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Policy, error)

	// Active returns active policies that are global or belong to tenantID
	Active(ctx context.Context, tenantID string) ([]Policy, error)
}

type AccessLogRepo interface {
	Append(ctx context.Context, entry AccessLogEntry) error

	// CountDenied counts the user's deny responses at or after since
	CountDenied(ctx context.Context, userID string, since time.Time) (int, error)

	// Recent returns the user's latest entries, newest first
	Recent(ctx context.Context, userID string, limit int) ([]AccessLogEntry, error)
}
