package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/internal/auth/domain"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
)

type accountEnv struct {
	*testEnv
	accounts *service.AccountService
	db       *sqlite.Store
}

func newAccountEnv(t *testing.T, captcha service.CaptchaVerifier) *accountEnv {
	t.Helper()

	env := newEnv(t)

	db, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	accounts := &service.AccountService{
		Store:        db,
		Hasher:       cryptox.NewPasswordHasher("pepper"),
		Sessions:     env.sessions,
		Captcha:      captcha,
		LoginGate:    service.NewMemoryAttemptGate(service.AttemptPolicy{}).WithClock(env.clock.Now),
		RegisterGate: service.NewMemoryAttemptGate(service.AttemptPolicy{}).WithClock(env.clock.Now),
		Now:          env.clock.Now,
	}
	env.sessions.Subjects = accounts

	return &accountEnv{testEnv: env, accounts: accounts, db: db}
}

func registerAlice(t *testing.T, env *accountEnv) *domain.TokenPair {
	t.Helper()

	pair, err := env.accounts.Register(context.Background(), service.RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "correct horse",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)
	return pair
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t, service.StaticCaptcha(true))

	pair := registerAlice(t, env)
	require.Equal(t, []string{domain.RoleUser}, pair.Access.Roles)

	user, err := env.db.Users().GetUserByID(ctx, pair.Access.Subject)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "correct horse", user.PasswordHash)

	// The session is live and refreshable.
	_, err = env.sessions.Refresh(ctx, service.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, service.RegisterRequest{
			Username: "alice", Email: "other@example.com", Password: "x", ClientIP: "198.51.100.1",
		})
		require.ErrorIs(t, err, service.ErrUserExists)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, service.RegisterRequest{
			Username: "alice2", Email: "ALICE@example.com", Password: "x", ClientIP: "198.51.100.1",
		})
		require.ErrorIs(t, err, service.ErrUserExists)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t, service.StaticCaptcha(true))
	registered := registerAlice(t, env)

	pair, err := env.accounts.Login(ctx, service.LoginRequest{
		Username: "alice",
		Password: "correct horse",
		ClientIP: "203.0.113.7",
		DeviceID: "phone",
	})
	require.NoError(t, err)
	require.Equal(t, registered.Access.Subject, pair.Access.Subject)
	require.Equal(t, "phone", pair.Access.DeviceID)

	user, err := env.db.Users().GetUserByID(ctx, pair.Access.Subject)
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
	require.Equal(t, t0.Unix(), user.LastLoginAt.Unix())

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.accounts.Login(ctx, service.LoginRequest{Username: "alice", Password: "nope", ClientIP: "198.51.100.9"})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.accounts.Login(ctx, service.LoginRequest{Username: "mallory", Password: "x", ClientIP: "198.51.100.9"})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

func TestLoginCaptchaGate(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t, service.StaticCaptcha(false))
	registerAlice(t, env)

	const ip = "198.51.100.20"
	bad := service.LoginRequest{Username: "alice", Password: "wrong", ClientIP: ip}
	good := service.LoginRequest{Username: "alice", Password: "correct horse", ClientIP: ip}

	for range 3 {
		_, err := env.accounts.Login(ctx, bad)
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	}

	_, err := env.accounts.Login(ctx, good)
	require.ErrorIs(t, err, service.ErrCaptchaRequired, "even the right password needs a captcha now")
	require.Equal(t, service.Challenge, service.Classify(err))

	good.CaptchaToken = "token"
	_, err = env.accounts.Login(ctx, good)
	require.ErrorIs(t, err, service.ErrCaptchaInvalid)

	// Other clients are not affected.
	_, err = env.accounts.Login(ctx, service.LoginRequest{Username: "alice", Password: "correct horse", ClientIP: "203.0.113.50"})
	require.NoError(t, err)

	t.Run("a solved captcha lets the login through and resets the gate", func(t *testing.T) {
		env.accounts.Captcha = service.StaticCaptcha(true)
		_, err := env.accounts.Login(ctx, good)
		require.NoError(t, err)
		require.False(t, env.accounts.LoginGate.IsChallengeRequired(ctx, ip))
	})
}

func TestRegisterCaptchaGate(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t, service.StaticCaptcha(false))
	registerAlice(t, env)

	const ip = "198.51.100.30"
	dup := service.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "x", ClientIP: ip}
	for range 3 {
		_, err := env.accounts.Register(ctx, dup)
		require.ErrorIs(t, err, service.ErrUserExists)
	}

	_, err := env.accounts.Register(ctx, service.RegisterRequest{Username: "carol", Email: "c@example.com", Password: "x", ClientIP: ip})
	require.ErrorIs(t, err, service.ErrCaptchaRequired)

	// Login has its own gate.
	require.False(t, env.accounts.LoginGate.IsChallengeRequired(ctx, ip))
}

func TestSubjectRoles(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t, service.StaticCaptcha(true))
	pair := registerAlice(t, env)

	roles, err := env.accounts.SubjectRoles(ctx, pair.Access.Subject)
	require.NoError(t, err)
	require.Equal(t, []string{domain.RoleUser}, roles)

	_, err = env.accounts.SubjectRoles(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.Error(t, err)
}
