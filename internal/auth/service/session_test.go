package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/internal/auth/revocation"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	pair, err := env.sessions.Open(ctx, "alice", []string{"USER"}, "dev-1")
	require.NoError(t, err)
	require.Equal(t, jwtx.KindAccess, pair.Access.Kind)
	require.Equal(t, jwtx.KindRefresh, pair.Refresh.Kind)
	require.Equal(t, []string{"USER"}, pair.Access.Roles)
	require.Equal(t, "dev-1", pair.Refresh.DeviceID)
	require.Equal(t, 15*time.Minute, pair.ExpiresIn)
	require.NotEqual(t, pair.Access.ID, pair.Refresh.ID)

	require.True(t, env.store.AllowList().IsAllowed(ctx, "alice", pair.Refresh.ID))
	require.Equal(t, 30*24*time.Hour, env.mr.TTL("rt:allow:alice"))

	claims, err := env.sessions.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)

	_, err = env.sessions.Authenticate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrWrongTokenKind)
}

func TestOpenReplacesChain(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	first, err := env.sessions.Open(ctx, "alice", nil, "")
	require.NoError(t, err)
	second, err := env.sessions.Open(ctx, "alice", nil, "")
	require.NoError(t, err)

	_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: first.RefreshToken})
	require.ErrorIs(t, err, service.ErrNotAllowed)

	_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: second.RefreshToken})
	require.NoError(t, err)
}

func TestRefreshWithPriorAccess(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	pair, err := env.sessions.Open(ctx, "alice", []string{"USER"}, "dev-1")
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	env.subjects.set("alice", "USER", "ADMIN")

	next, err := env.sessions.Refresh(ctx, service.RefreshRequest{
		RefreshToken:     pair.RefreshToken,
		PriorAccessToken: "Bearer " + pair.AccessToken,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"USER", "ADMIN"}, next.Access.Roles, "roles are re-resolved")
	require.Equal(t, "dev-1", next.Access.DeviceID)

	t.Run("old refresh token is spent", func(t *testing.T) {
		_, err := env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
		require.ErrorIs(t, err, service.ErrNotAllowed)
		require.True(t, env.store.RefreshBlacklist().Contains(ctx, pair.Refresh.ID))
	})

	t.Run("prior access token is blacklisted", func(t *testing.T) {
		_, err := env.sessions.Authenticate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrBlacklisted)

		// Remaining lifetime plus leeway.
		require.Equal(t, 14*time.Minute+leeway, env.mr.TTL("bl:access:"+pair.Access.ID))
	})

	t.Run("no epoch raised", func(t *testing.T) {
		require.False(t, env.mr.Exists("at:ban:alice"))
	})

	t.Run("new pair works", func(t *testing.T) {
		_, err := env.sessions.Authenticate(ctx, next.AccessToken)
		require.NoError(t, err)
		require.True(t, env.store.AllowList().IsAllowed(ctx, "alice", next.Refresh.ID))
	})
}

func TestRefreshWithoutPriorAccess(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	pair, err := env.sessions.Open(ctx, "alice", nil, "")
	require.NoError(t, err)
	other, err := env.sessions.Open(ctx, "bob", nil, "")
	require.NoError(t, err)

	env.clock.Advance(time.Minute)

	next, err := env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	_, err = env.sessions.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, service.ErrRevoked)

	_, err = env.sessions.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)

	// Other subjects are untouched.
	_, err = env.sessions.Authenticate(ctx, other.AccessToken)
	require.NoError(t, err)
}

func TestRefreshIgnoresUnusablePriorAccess(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	alice, err := env.sessions.Open(ctx, "alice", nil, "")
	require.NoError(t, err)
	bob, err := env.sessions.Open(ctx, "bob", nil, "")
	require.NoError(t, err)

	env.clock.Advance(time.Minute)

	tests := []struct {
		name  string
		prior string
	}{
		{"other subject", bob.AccessToken},
		{"refresh token", alice.RefreshToken},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, err := env.sessions.Open(ctx, "alice", nil, "")
			require.NoError(t, err)
			env.clock.Advance(time.Second)

			_, err = env.sessions.Refresh(ctx, service.RefreshRequest{
				RefreshToken:     current.RefreshToken,
				PriorAccessToken: tt.prior,
			})
			require.NoError(t, err)
			require.True(t, env.mr.Exists("at:ban:alice"), "falls back to the epoch")
		})
	}

	_, err = env.sessions.Authenticate(ctx, bob.AccessToken)
	require.NoError(t, err, "a foreign prior token is never revoked")
}

func TestRefreshRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("access token presented", func(t *testing.T) {
		env := newEnv(t)
		pair, err := env.sessions.Open(ctx, "alice", nil, "")
		require.NoError(t, err)

		_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.AccessToken})
		require.ErrorIs(t, err, service.ErrWrongTokenKind)
	})

	t.Run("malformed", func(t *testing.T) {
		env := newEnv(t)
		_, err := env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: "a.b.c"})
		require.Error(t, err)
		require.Equal(t, service.Rejected, service.Classify(err))
	})

	t.Run("expired", func(t *testing.T) {
		env := newEnv(t)
		pair, err := env.sessions.Open(ctx, "alice", nil, "")
		require.NoError(t, err)

		env.clock.Advance(31 * 24 * time.Hour)
		_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("unknown subject", func(t *testing.T) {
		env := newEnv(t)
		pair, err := env.sessions.Open(ctx, "alice", nil, "")
		require.NoError(t, err)

		env.subjects.remove("alice")
		_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
		require.ErrorIs(t, err, service.ErrNotAllowed)

		// Nothing was rotated.
		require.True(t, env.store.AllowList().IsAllowed(ctx, "alice", pair.Refresh.ID))
	})

	t.Run("blacklisted by logout", func(t *testing.T) {
		env := newEnv(t)
		pair, err := env.sessions.Open(ctx, "alice", nil, "")
		require.NoError(t, err)

		require.NoError(t, env.sessions.Logout(ctx, pair.AccessToken, pair.RefreshToken))
		_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
		require.ErrorIs(t, err, service.ErrBlacklisted)
	})
}

func TestConcurrentRefresh(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	pair, err := env.sessions.Open(ctx, "alice", nil, "")
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	alice, err := env.sessions.Open(ctx, "alice", nil, "")
	require.NoError(t, err)
	bob, err := env.sessions.Open(ctx, "bob", nil, "")
	require.NoError(t, err)

	// Bob's refresh token is not Alice's to revoke.
	require.NoError(t, env.sessions.Logout(ctx, "Bearer "+alice.AccessToken, bob.RefreshToken))

	_, err = env.sessions.Authenticate(ctx, alice.AccessToken)
	require.ErrorIs(t, err, service.ErrBlacklisted)
	require.False(t, env.store.RefreshBlacklist().Contains(ctx, bob.Refresh.ID))

	_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: bob.RefreshToken})
	require.NoError(t, err)

	t.Run("invalid access token", func(t *testing.T) {
		require.Error(t, env.sessions.Logout(ctx, "garbage", ""))
	})

	t.Run("refresh token as access token", func(t *testing.T) {
		require.ErrorIs(t, env.sessions.Logout(ctx, alice.RefreshToken, ""), service.ErrWrongTokenKind)
	})
}

func TestLogoutAll(t *testing.T) {
	ctx := context.Background()

	t.Run("keep access tokens", func(t *testing.T) {
		env := newEnv(t)
		pair, err := env.sessions.Open(ctx, "alice", nil, "")
		require.NoError(t, err)

		require.NoError(t, env.sessions.LogoutAll(ctx, "alice", false))

		_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
		require.ErrorIs(t, err, service.ErrNotAllowed)
		_, err = env.sessions.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)
	})

	t.Run("revoke access tokens", func(t *testing.T) {
		env := newEnv(t)
		pair, err := env.sessions.Open(ctx, "alice", nil, "")
		require.NoError(t, err)

		env.clock.Advance(time.Second)
		require.NoError(t, env.sessions.LogoutAll(ctx, "alice", true))

		_, err = env.sessions.Authenticate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrRevoked)

		// A login after the ban is unaffected.
		fresh, err := env.sessions.Open(ctx, "alice", nil, "")
		require.NoError(t, err)
		_, err = env.sessions.Authenticate(ctx, fresh.AccessToken)
		require.NoError(t, err)
	})

	t.Run("blank subject", func(t *testing.T) {
		env := newEnv(t)
		require.ErrorIs(t, env.sessions.LogoutAll(ctx, "", true), service.ErrNotAllowed)
	})
}

func TestSessionsWithoutRedis(t *testing.T) {
	ctx := context.Background()
	env := newEnvWith(t, deadRedis(t))

	// The pair is still handed out; only refreshing is lost.
	pair, err := env.sessions.Open(ctx, "alice", nil, "")
	require.NoError(t, err)

	_, err = env.sessions.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err, "access checks fail open")

	_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.ErrorIs(t, err, service.ErrNotAllowed, "refresh checks fail closed")

	err = env.sessions.LogoutAll(ctx, "alice", true)
	require.ErrorIs(t, err, revocation.ErrStoreUnavailable)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want service.Outcome
	}{
		{nil, service.Accepted},
		{service.ErrCaptchaRequired, service.Challenge},
		{service.ErrCaptchaInvalid, service.Challenge},
		{service.ErrInvalidCredentials, service.Rejected},
		{service.ErrNotAllowed, service.Rejected},
		{jwtx.ErrExpired, service.Rejected},
		{revocation.ErrStoreUnavailable, service.Rejected},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, service.Classify(tt.err), "%v", tt.err)
	}
}
