package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso-server/kvstore"
)

// RevocationList records revoked token ids until the tokens would have expired
// anyway. Session-bound tokens are revoked by ending their session instead.
type RevocationList struct {
	store   kvstore.Store
	nowFunc func() time.Time
}

func NewRevocationList(store kvstore.Store, nowFunc func() time.Time) *RevocationList {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &RevocationList{
		store:   store,
		nowFunc: nowFunc,
	}
}

// Revoke is a no-op for tokens that have already expired
func (r *RevocationList) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	if claims.Expired(r.nowFunc()) {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(r.nowFunc())
	if err := r.store.Set(ctx, kvstore.RevokedTokenPrefix+claims.ID, []byte("1"), ttl); err != nil {
		return fmt.Errorf("[RevocationList.Revoke] %w", err)
	}
	return nil
}

// IsRevoked fails closed: a store error reports the token as revoked.
func (r *RevocationList) IsRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	_, err := r.store.Get(ctx, kvstore.RevokedTokenPrefix+jti)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false
	}
	return true
}
