package service_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/internal/auth/revocation"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/internal/auth/store"
	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

const leeway = 30 * time.Second

var t0 = time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// directory is an in-memory SubjectDirectory.
type directory struct {
	mu    sync.Mutex
	roles map[string][]string
}

func (d *directory) SubjectRoles(_ context.Context, sub string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	roles, ok := d.roles[sub]
	if !ok {
		return nil, store.ErrNotFound
	}
	return roles, nil
}

func (d *directory) set(sub string, roles ...string) {
	d.mu.Lock()
	d.roles[sub] = roles
	d.mu.Unlock()
}

func (d *directory) remove(sub string) {
	d.mu.Lock()
	delete(d.roles, sub)
	d.mu.Unlock()
}

type testEnv struct {
	clock     *clock
	mr        *miniredis.Miniredis
	keys      *jwtx.KeyStore
	issuer    *jwtx.TokenIssuer
	validator *jwtx.Validator
	store     *revocation.Store
	subjects  *directory
	sessions  *service.SessionService
}

func newKeys(t *testing.T) *jwtx.KeyStore {
	t.Helper()

	der, err := cryptox.GenerateSigningKey(cryptox.KeyEdDSA, 0)
	require.NoError(t, err)
	keys, err := jwtx.NewKeyStore(jwtx.FormatKeyEntry("k1", der), "")
	require.NoError(t, err)
	return keys
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// deadRedis points at an address nothing listens on any more.
func deadRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, rdb := newRedis(t)
	env := newEnvWith(t, rdb)
	env.mr = mr
	return env
}

func newEnvWith(t *testing.T, rdb redis.UniversalClient) *testEnv {
	t.Helper()

	c := newClock()
	keys := newKeys(t)

	issuer := jwtx.NewIssuer(keys, jwtx.IssuerConfig{
		Issuer:   "auth-service",
		Audience: []string{"converter-backend"},
		Now:      c.Now,
	})
	validator := jwtx.NewValidator(keys, jwtx.ValidatorOptions{
		Issuers:   []string{"auth-service"},
		Audiences: []string{"converter-backend"},
		Leeway:    leeway,
		Now:       c.Now,
	})
	rev := revocation.New(rdb, revocation.Options{
		OpTimeout: 100 * time.Millisecond,
		Now:       c.Now,
	})
	subjects := &directory{roles: map[string][]string{"alice": {"USER"}, "bob": {"USER"}}}

	return &testEnv{
		clock:     c,
		keys:      keys,
		issuer:    issuer,
		validator: validator,
		store:     rev,
		subjects:  subjects,
		sessions: &service.SessionService{
			Issuer:     issuer,
			Validator:  validator,
			Revocation: rev,
			Subjects:   subjects,
			Leeway:     leeway,
			Now:        c.Now,
		},
	}
}

func discardLogger() *slog.Logger { return slogx.Discard() }
