// Package revocation keeps the server-side token state in Redis: the access
// and refresh blacklists, the per-subject refresh allow-list and the
// per-subject epoch watermark.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrStoreUnavailable = errors.New("revocation: store unavailable")

	// ErrNotAllowed means the refresh token is no longer the subject's
	// current one.
	ErrNotAllowed = errors.New("revocation: refresh token not allowed")

	// ErrBlacklisted means the refresh token was already redeemed or revoked.
	ErrBlacklisted = errors.New("revocation: refresh token blacklisted")
)

// Key prefixes.
const (
	prefixAccessBlacklist  = "bl:access:"
	prefixRefreshBlacklist = "rt:black:"
	prefixRefreshAllow     = "rt:allow:"
	prefixEpoch            = "at:ban:"
)

const (
	DefaultOpTimeout      = 250 * time.Millisecond
	DefaultEpochRetention = 24 * time.Hour
)

type Options struct {
	// OpTimeout bounds every Redis round trip.
	OpTimeout time.Duration

	// EpochRetention is how long an epoch watermark outlives its last
	// update. It must exceed the longest access token lifetime.
	EpochRetention time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Store is the Redis-backed revocation state shared by every instance.
type Store struct {
	rdb  redis.UniversalClient
	opts Options
}

func New(rdb redis.UniversalClient, opts Options) *Store {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.EpochRetention <= 0 {
		opts.EpochRetention = DefaultEpochRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{rdb: rdb, opts: opts}
}

// AccessBlacklist fails open: if Redis cannot answer, the token is treated
// as not blacklisted.
func (s *Store) AccessBlacklist() *Blacklist {
	return &Blacklist{store: s, prefix: prefixAccessBlacklist, failOpen: true, name: "access"}
}

// RefreshBlacklist fails closed: if Redis cannot answer, the token is
// treated as blacklisted.
func (s *Store) RefreshBlacklist() *Blacklist {
	return &Blacklist{store: s, prefix: prefixRefreshBlacklist, name: "refresh"}
}

func (s *Store) AllowList() *AllowList { return &AllowList{store: s} }

func (s *Store) Epochs() *Epochs { return &Epochs{store: s} }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OpTimeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// ttlSeconds rounds d up to whole seconds with a floor of one, so an entry
// never expires before the token it describes.
func ttlSeconds(d time.Duration) int64 {
	return max(int64(math.Ceil(d.Seconds())), 1)
}

func expiry(d time.Duration) time.Duration {
	return time.Duration(ttlSeconds(d)) * time.Second
}
