package revocation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/internal/auth/revocation"
)

var t0 = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*revocation.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	store := revocation.New(rdb, revocation.Options{
		EpochRetention: time.Hour,
		Now:            func() time.Time { return t0 },
	})
	return store, mr
}

// newDeadStore returns a store whose Redis has gone away.
func newDeadStore(t *testing.T) *revocation.Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	return revocation.New(rdb, revocation.Options{OpTimeout: 100 * time.Millisecond})
}

func TestBlacklist(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	access := store.AccessBlacklist()
	refresh := store.RefreshBlacklist()

	require.False(t, access.Contains(ctx, "a1"))
	require.NoError(t, access.Put(ctx, "a1", 10*time.Second))
	require.True(t, access.Contains(ctx, "a1"))

	// The lists do not share a namespace.
	require.False(t, refresh.Contains(ctx, "a1"))

	mr.FastForward(11 * time.Second)
	require.False(t, access.Contains(ctx, "a1"))
}

func TestBlacklistTTLFloor(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	list := store.RefreshBlacklist()
	require.NoError(t, list.Put(ctx, "r1", 0))
	require.NoError(t, list.Put(ctx, "r2", -time.Minute))
	require.NoError(t, list.Put(ctx, "r3", 1500*time.Millisecond))

	require.Equal(t, time.Second, mr.TTL("rt:black:r1"))
	require.Equal(t, time.Second, mr.TTL("rt:black:r2"))
	require.Equal(t, 2*time.Second, mr.TTL("rt:black:r3"))
	require.True(t, list.Contains(ctx, "r1"))
}

func TestBlacklistBlankJTI(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	require.NoError(t, store.AccessBlacklist().Put(ctx, "", time.Minute))
	require.False(t, store.AccessBlacklist().Contains(ctx, ""))
	require.Empty(t, mr.Keys())
}

func TestAllowList(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	allow := store.AllowList()

	require.False(t, allow.IsAllowed(ctx, "alice", "r1"))

	require.NoError(t, allow.Set(ctx, "alice", "r1", time.Hour))
	require.True(t, allow.IsAllowed(ctx, "alice", "r1"))
	require.False(t, allow.IsAllowed(ctx, "alice", "r0"))
	require.False(t, allow.IsAllowed(ctx, "bob", "r1"))

	// Replacing the entry invalidates the previous token.
	require.NoError(t, allow.Set(ctx, "alice", "r2", time.Hour))
	require.False(t, allow.IsAllowed(ctx, "alice", "r1"))
	require.True(t, allow.IsAllowed(ctx, "alice", "r2"))

	require.NoError(t, allow.Clear(ctx, "alice"))
	require.False(t, allow.IsAllowed(ctx, "alice", "r2"))

	require.NoError(t, allow.Set(ctx, "alice", "r3", 5*time.Second))
	mr.FastForward(6 * time.Second)
	require.False(t, allow.IsAllowed(ctx, "alice", "r3"))
}

func TestEpochs(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	epochs := store.Epochs()

	require.False(t, epochs.IsRevoked(ctx, "alice", t0))

	require.NoError(t, epochs.BanAt(ctx, "alice", t0))
	require.True(t, epochs.IsRevoked(ctx, "alice", t0.Add(-time.Second)))
	require.False(t, epochs.IsRevoked(ctx, "alice", t0))
	require.False(t, epochs.IsRevoked(ctx, "alice", t0.Add(time.Second)))
	require.False(t, epochs.IsRevoked(ctx, "bob", t0.Add(-time.Hour)))

	t.Run("watermark never moves backwards", func(t *testing.T) {
		require.NoError(t, epochs.BanAt(ctx, "alice", t0.Add(-time.Hour)))
		w, err := epochs.Watermark(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, t0.Unix(), w)
	})

	t.Run("raise", func(t *testing.T) {
		require.NoError(t, epochs.BanAt(ctx, "alice", t0.Add(time.Minute)))
		require.True(t, epochs.IsRevoked(ctx, "alice", t0.Add(30*time.Second)))
	})

	t.Run("retention", func(t *testing.T) {
		require.Equal(t, time.Hour, mr.TTL("at:ban:alice"))
		mr.FastForward(time.Hour + time.Second)
		require.False(t, epochs.IsRevoked(ctx, "alice", t0))
	})

	t.Run("ban now", func(t *testing.T) {
		require.NoError(t, epochs.BanNow(ctx, "carol"))
		w, err := epochs.Watermark(ctx, "carol")
		require.NoError(t, err)
		require.Equal(t, t0.Unix(), w)
	})

	t.Run("garbage value reads as unset", func(t *testing.T) {
		require.NoError(t, mr.Set("at:ban:dave", "not-a-number"))
		require.False(t, epochs.IsRevoked(ctx, "dave", t0.Add(-time.Hour)))
	})
}

func TestRotate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.AllowList().Set(ctx, "alice", "r1", time.Hour))

		err := store.Rotate(ctx, revocation.RotateRequest{
			Subject:   "alice",
			OldJTI:    "r1",
			OldTTL:    30 * time.Minute,
			NewJTI:    "r2",
			NewTTL:    time.Hour,
			AccessJTI: "a1",
			AccessTTL: 5 * time.Minute,
			BanBefore: t0,
		})
		require.NoError(t, err)

		require.True(t, store.AllowList().IsAllowed(ctx, "alice", "r2"))
		require.False(t, store.AllowList().IsAllowed(ctx, "alice", "r1"))
		require.True(t, store.RefreshBlacklist().Contains(ctx, "r1"))
		require.True(t, store.AccessBlacklist().Contains(ctx, "a1"))
		require.True(t, store.Epochs().IsRevoked(ctx, "alice", t0.Add(-time.Second)))

		require.Equal(t, time.Hour, mr.TTL("rt:allow:alice"))
		require.Equal(t, 30*time.Minute, mr.TTL("rt:black:r1"))
		require.Equal(t, 5*time.Minute, mr.TTL("bl:access:a1"))
	})

	t.Run("replay", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.AllowList().Set(ctx, "alice", "r1", time.Hour))

		req := revocation.RotateRequest{Subject: "alice", OldJTI: "r1", OldTTL: time.Hour, NewJTI: "r2", NewTTL: time.Hour}
		require.NoError(t, store.Rotate(ctx, req))

		req.NewJTI = "r3"
		require.ErrorIs(t, store.Rotate(ctx, req), revocation.ErrNotAllowed)
		require.True(t, store.AllowList().IsAllowed(ctx, "alice", "r2"))
	})

	t.Run("blacklisted but still allowed", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.AllowList().Set(ctx, "alice", "r1", time.Hour))
		require.NoError(t, store.RefreshBlacklist().Put(ctx, "r1", time.Hour))

		err := store.Rotate(ctx, revocation.RotateRequest{Subject: "alice", OldJTI: "r1", OldTTL: time.Hour, NewJTI: "r2", NewTTL: time.Hour})
		require.ErrorIs(t, err, revocation.ErrBlacklisted)
		require.True(t, store.AllowList().IsAllowed(ctx, "alice", "r1"))
	})

	t.Run("no prior access token", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.AllowList().Set(ctx, "alice", "r1", time.Hour))

		err := store.Rotate(ctx, revocation.RotateRequest{Subject: "alice", OldJTI: "r1", OldTTL: time.Hour, NewJTI: "r2", NewTTL: time.Hour})
		require.NoError(t, err)
		require.False(t, mr.Exists("bl:access:"))
		require.False(t, mr.Exists("at:ban:alice"))
	})

	t.Run("missing fields", func(t *testing.T) {
		store, _ := newStore(t)
		require.ErrorIs(t, store.Rotate(ctx, revocation.RotateRequest{Subject: "alice"}), revocation.ErrNotAllowed)
	})

	t.Run("concurrent redemption has one winner", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.AllowList().Set(ctx, "alice", "r1", time.Hour))

		const n = 16
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.Rotate(ctx, revocation.RotateRequest{
					Subject: "alice",
					OldJTI:  "r1",
					OldTTL:  time.Hour,
					NewJTI:  "r2-" + string(rune('a'+i)),
					NewTTL:  time.Hour,
				})
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		require.Equal(t, 1, wins)
	})
}

func TestUnavailableStore(t *testing.T) {
	ctx := context.Background()
	store := newDeadStore(t)

	require.ErrorIs(t, store.Ping(ctx), revocation.ErrStoreUnavailable)
	require.ErrorIs(t, store.AccessBlacklist().Put(ctx, "a1", time.Minute), revocation.ErrStoreUnavailable)
	require.ErrorIs(t, store.Epochs().BanNow(ctx, "alice"), revocation.ErrStoreUnavailable)

	// Access checks fail open, refresh checks fail closed.
	require.False(t, store.AccessBlacklist().Contains(ctx, "a1"))
	require.False(t, store.Epochs().IsRevoked(ctx, "alice", t0))
	require.True(t, store.RefreshBlacklist().Contains(ctx, "r1"))
	require.False(t, store.AllowList().IsAllowed(ctx, "alice", "r1"))

	err := store.Rotate(ctx, revocation.RotateRequest{Subject: "alice", OldJTI: "r1", NewJTI: "r2"})
	require.ErrorIs(t, err, revocation.ErrStoreUnavailable)
}
