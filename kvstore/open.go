package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso-server/internal/observability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures the store backend
type Options struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	// AllowMemoryFallback lets Open return a MemoryStore when Redis cannot be
	// reached at startup. The fallback is logged and reported, never silent.
	AllowMemoryFallback bool
	PingTimeout         time.Duration
}

// Open constructs the configured backend. The choice is made once here;
// a running store is never swapped for another.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		logger.Warn().Msg("using in-memory session store, sessions will not survive a restart")
		return NewMemoryStore(), nil
	case BackendRedis, "":
	default:
		return nil, fmt.Errorf("[kvstore.Open] unknown backend %q", opts.Backend)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	store := NewRedisStore(client, opts.KeyPrefix)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := store.Ping(pingCtx)
	if err == nil {
		logger.Info().Str("addr", opts.RedisAddr).Msg("redis session store ready")
		return store, nil
	}
	_ = client.Close()

	if !opts.AllowMemoryFallback {
		return nil, fmt.Errorf("[kvstore.Open] redis %s: %w", opts.RedisAddr, err)
	}

	observability.CaptureInfrastructureError(logger, err, "kvstore")
	observability.RecordStoreEvent(ctx, BackendRedis, "fallback_to_memory")
	logger.Error().
		Str("addr", opts.RedisAddr).
		Msg("redis unreachable, FALLING BACK TO IN-MEMORY SESSION STORE: sessions are process-local and lost on restart")
	return NewMemoryStore(), nil
}
