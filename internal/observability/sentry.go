package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// InitSentry enables infrastructure error reporting. An empty DSN disables it and
// CaptureInfrastructureError then only logs.
func InitSentry(dsn, env string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
	}); err != nil {
		return nil, fmt.Errorf("[InitSentry] sentry.Init: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureInfrastructureError logs at error level and forwards to Sentry.
// Only infrastructure failures go through here, never security decisions.
func CaptureInfrastructureError(logger zerolog.Logger, err error, component string) {
	if err == nil {
		return
	}
	logger.Error().Err(err).Str("component", component).Msg("infrastructure failure")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		sentry.CaptureException(err)
	})
}
