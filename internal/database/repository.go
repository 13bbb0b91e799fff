package database

import (
	"context"

	"github.com/jrsteele09/go-sso-server/internal/observability"
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func record(ctx context.Context, repo, op string, err error) {
	observability.RecordRepositoryOperation(ctx, repo, op, outcome(err))
}
