package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rotateScript performs one refresh rotation atomically.
//
//	KEYS[1] allow-list key of the subject
//	KEYS[2] refresh blacklist key of the presented token
//	KEYS[3] access blacklist key of the prior access token
//	KEYS[4] epoch key of the subject
//	ARGV[1] presented refresh jti
//	ARGV[2] new refresh jti
//	ARGV[3] new refresh ttl (seconds)
//	ARGV[4] presented refresh ttl (seconds)
//	ARGV[5] prior access ttl (seconds, 0 to skip)
//	ARGV[6] epoch watermark (unix seconds, 0 to skip)
//	ARGV[7] epoch retention (seconds)
//
// Returns 0 on success, 1 when the presented token is not the allowed one
// and 2 when it is already blacklisted.
const rotateScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
redis.call("SET", KEYS[1], ARGV[2], "EX", ARGV[3])
redis.call("SET", KEYS[2], "1", "EX", ARGV[4])
if tonumber(ARGV[5]) > 0 then
  redis.call("SET", KEYS[3], "1", "EX", ARGV[5])
end
local watermark = tonumber(ARGV[6])
if watermark > 0 then
  local current = tonumber(redis.call("GET", KEYS[4]) or "0") or 0
  if watermark > current then
    redis.call("SET", KEYS[4], ARGV[6], "EX", ARGV[7])
  else
    redis.call("EXPIRE", KEYS[4], ARGV[7])
  end
end
return 0
`

var rotateLua = redis.NewScript(rotateScript)

const (
	rotateOK          = 0
	rotateNotAllowed  = 1
	rotateBlacklisted = 2
)

// RotateRequest describes a single refresh rotation.
type RotateRequest struct {
	Subject string

	// OldJTI is the refresh token being redeemed; OldTTL its remaining life.
	OldJTI string
	OldTTL time.Duration

	// NewJTI becomes the subject's allowed refresh token for NewTTL.
	NewJTI string
	NewTTL time.Duration

	// AccessJTI, when set, blacklists the prior access token for AccessTTL.
	AccessJTI string
	AccessTTL time.Duration

	// BanBefore, when non-zero, raises the subject's epoch watermark.
	BanBefore time.Time
}

// Rotate checks that OldJTI is the subject's current refresh token and not
// yet redeemed, then swaps in NewJTI and records the revocations. Either all
// of it happens or none of it does, so two concurrent redemptions of the
// same token cannot both succeed.
func (s *Store) Rotate(ctx context.Context, req RotateRequest) error {
	if req.Subject == "" || req.OldJTI == "" || req.NewJTI == "" {
		return ErrNotAllowed
	}

	var accessTTL int64
	if req.AccessJTI != "" {
		accessTTL = ttlSeconds(req.AccessTTL)
	}
	var watermark int64
	if !req.BanBefore.IsZero() {
		watermark = req.BanBefore.Unix()
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	code, err := rotateLua.Run(ctx, s.rdb,
		[]string{
			prefixRefreshAllow + req.Subject,
			prefixRefreshBlacklist + req.OldJTI,
			prefixAccessBlacklist + req.AccessJTI,
			prefixEpoch + req.Subject,
		},
		req.OldJTI,
		req.NewJTI,
		ttlSeconds(req.NewTTL),
		ttlSeconds(req.OldTTL),
		accessTTL,
		watermark,
		ttlSeconds(s.opts.EpochRetention),
	).Int64()
	if err != nil {
		return unavailable(err)
	}

	switch code {
	case rotateOK:
		return nil
	case rotateNotAllowed:
		return ErrNotAllowed
	case rotateBlacklisted:
		return ErrBlacklisted
	default:
		return fmt.Errorf("revocation: unexpected rotate result %d", code)
	}
}
