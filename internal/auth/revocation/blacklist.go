package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// Blacklist is a negative cache of token ids. Entries live exactly as long
// as the token could still be presented.
type Blacklist struct {
	store    *Store
	prefix   string
	name     string
	failOpen bool
}

// Put blacklists jti for ttl (at least one second). A blank jti is ignored.
func (b *Blacklist) Put(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}

	ctx, cancel := b.store.opCtx(ctx)
	defer cancel()

	if err := b.store.rdb.Set(ctx, b.prefix+jti, "1", expiry(ttl)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Contains reports whether jti is blacklisted. Store failures resolve to
// the list's policy default and are logged.
func (b *Blacklist) Contains(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}

	found, err := b.lookup(ctx, jti)
	if err != nil {
		slogx.FromContext(ctx).Warn("blacklist lookup failed",
			"list", b.name,
			"jti", jti,
			"fail_open", b.failOpen,
			"err", err,
		)
		return !b.failOpen
	}
	return found
}

func (b *Blacklist) lookup(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := b.store.opCtx(ctx)
	defer cancel()

	err := b.store.rdb.Get(ctx, b.prefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, unavailable(err)
	}
}
