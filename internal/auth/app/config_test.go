package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/internal/auth/app"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg := app.LoadConfig()
	require.Equal(t, "test", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "auth-service", cfg.Issuer)
	require.Equal(t, []string{"converter-backend"}, cfg.Audience)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 30*time.Second, cfg.Leeway)
	require.Equal(t, app.AttemptBackendMemory, cfg.AttemptBackend)
	require.Equal(t, 3, cfg.AttemptThreshold)
	require.Equal(t, service.CaptchaReCaptcha, cfg.Captcha.Provider)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_AUDIENCE", "a, b,,c ")
	t.Setenv("AUTH_ACCESS_TTL", "300")
	t.Setenv("AUTH_REFRESH_TTL", "48h")
	t.Setenv("ATTEMPT_BACKEND", "Redis")
	t.Setenv("CAPTCHA_PROVIDER", "HCAPTCHA")
	t.Setenv("CAPTCHA_DEV_BYPASS", "true")
	t.Setenv("CAPTCHA_MIN_SCORE", "0.7")

	cfg := app.LoadConfig()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, []string{"a", "b", "c"}, cfg.Audience)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, 48*time.Hour, cfg.RefreshTTL)
	require.Equal(t, app.AttemptBackendRedis, cfg.AttemptBackend)
	require.Equal(t, service.CaptchaHCaptcha, cfg.Captcha.Provider)
	require.True(t, cfg.Captcha.DevBypass)
	require.InDelta(t, 0.7, cfg.Captcha.MinScore, 1e-9)
}

func TestLoadConfigIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("PORT", "eighty")
	t.Setenv("AUTH_LEEWAY", "soon")

	cfg := app.LoadConfig()
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 30*time.Second, cfg.Leeway)
}

func TestConfigValidate(t *testing.T) {
	valid := func() app.Config {
		t.Setenv("ENV", "test")
		return app.LoadConfig()
	}

	tests := []struct {
		name    string
		mutate  func(*app.Config)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(*app.Config) {},
		},
		{
			name:    "unknown env",
			mutate:  func(c *app.Config) { c.Env = "staging" },
			wantErr: []string{"ENV must be"},
		},
		{
			name: "access outlives refresh",
			mutate: func(c *app.Config) {
				c.AccessTTL = 2 * time.Hour
				c.RefreshTTL = time.Hour
				c.EpochRetention = 2 * time.Hour
			},
			wantErr: []string{"must not exceed"},
		},
		{
			name:    "epoch retention too short",
			mutate:  func(c *app.Config) { c.EpochRetention = time.Minute },
			wantErr: []string{"AUTH_EPOCH_RETENTION"},
		},
		{
			name:    "prod needs keys and no bypass",
			mutate:  func(c *app.Config) { c.Env = "prod"; c.Captcha.DevBypass = true },
			wantErr: []string{"AUTH_SIGNING_KEYS", "CAPTCHA_DEV_BYPASS"},
		},
		{
			name: "every problem is reported",
			mutate: func(c *app.Config) {
				c.Port = 0
				c.AttemptBackend = "etcd"
				c.Captcha.Provider = "turnstile"
			},
			wantErr: []string{"PORT", "ATTEMPT_BACKEND", "CAPTCHA_PROVIDER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				require.ErrorContains(t, err, want)
			}
		})
	}
}
