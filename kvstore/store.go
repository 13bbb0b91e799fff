// Package kvstore holds serialized session, token and authorization-code records
// keyed by opaque identifiers.
package kvstore

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-sso-server/internal/errors"
)

var (
	ErrNotFound    = apperrors.New(apperrors.KindExpired, "kvstore: key not found")
	ErrUnavailable = apperrors.New(apperrors.KindStoreUnavailable, "kvstore: backend unavailable")
)

// Store is the key-value contract used by the session core.
// A ttl of zero stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Take atomically reads and deletes key. Only one caller observes the value.
	Take(ctx context.Context, key string) ([]byte, error)

	AddToSet(ctx context.Context, setKey, member string) error
	RemoveFromSet(ctx context.Context, setKey, member string) error
	MembersOf(ctx context.Context, setKey string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error

	// Backend names the implementation for logs and metrics
	Backend() string
}

// Key prefixes shared by the packages writing to the store
const (
	SessionPrefix      = "session:"
	EndedSessionPrefix = "ended_session:"
	UserSessionsPrefix = "user_sessions:"
	AuthCodePrefix     = "auth_code:"
	ClientPrefix       = "client:"
	RevokedTokenPrefix = "revoked:"
)
