package revocation

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// raiseEpochScript moves the watermark forward only, and refreshes the
// retention either way.
//
//	KEYS[1] epoch key
//	ARGV[1] candidate watermark (unix seconds)
//	ARGV[2] retention (seconds)
const raiseEpochScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0") or 0
if tonumber(ARGV[1]) > current then
  redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[2])
else
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return 1
`

var raiseEpochLua = redis.NewScript(raiseEpochScript)

// Epochs holds a per-subject watermark: every token of the subject issued
// before it is revoked.
type Epochs struct {
	store *Store
}

// BanAt raises the subject's watermark to t. Lower values are ignored.
func (e *Epochs) BanAt(ctx context.Context, sub string, t time.Time) error {
	if sub == "" {
		return nil
	}

	ctx, cancel := e.store.opCtx(ctx)
	defer cancel()

	err := raiseEpochLua.Run(ctx, e.store.rdb,
		[]string{prefixEpoch + sub},
		t.Unix(), ttlSeconds(e.store.opts.EpochRetention),
	).Err()
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// BanNow revokes every token the subject holds right now.
func (e *Epochs) BanNow(ctx context.Context, sub string) error {
	return e.BanAt(ctx, sub, e.store.opts.Now())
}

// IsRevoked reports whether a token issued at iat predates the watermark.
// It fails open, the same way the access blacklist does.
func (e *Epochs) IsRevoked(ctx context.Context, sub string, iat time.Time) bool {
	if sub == "" {
		return false
	}

	watermark, err := e.Watermark(ctx, sub)
	if err != nil {
		slogx.FromContext(ctx).Warn("epoch lookup failed", "sub", sub, "err", err)
		return false
	}
	return watermark > 0 && iat.Unix() < watermark
}

// Watermark returns the stored watermark, or zero when none is set or the
// stored value does not parse.
func (e *Epochs) Watermark(ctx context.Context, sub string) (int64, error) {
	ctx, cancel := e.store.opCtx(ctx)
	defer cancel()

	v, err := e.store.rdb.Get(ctx, prefixEpoch+sub).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
