package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// AllowList records the single refresh token jti each subject may redeem.
type AllowList struct {
	store *Store
}

// Set makes jti the subject's only redeemable refresh token.
func (a *AllowList) Set(ctx context.Context, sub, jti string, ttl time.Duration) error {
	if sub == "" || jti == "" {
		return nil
	}

	ctx, cancel := a.store.opCtx(ctx)
	defer cancel()

	if err := a.store.rdb.Set(ctx, prefixRefreshAllow+sub, jti, expiry(ttl)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// IsAllowed reports whether jti is the subject's current refresh token.
// It fails closed.
func (a *AllowList) IsAllowed(ctx context.Context, sub, jti string) bool {
	if sub == "" || jti == "" {
		return false
	}

	opCtx, cancel := a.store.opCtx(ctx)
	defer cancel()

	current, err := a.store.rdb.Get(opCtx, prefixRefreshAllow+sub).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slogx.FromContext(ctx).Warn("allow-list lookup failed", "sub", sub, "err", err)
		}
		return false
	}
	return current == jti
}

// Clear drops the subject's allow-list entry, which makes every refresh
// token of that subject unusable.
func (a *AllowList) Clear(ctx context.Context, sub string) error {
	if sub == "" {
		return nil
	}

	ctx, cancel := a.store.opCtx(ctx)
	defer cancel()

	if err := a.store.rdb.Del(ctx, prefixRefreshAllow+sub).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
