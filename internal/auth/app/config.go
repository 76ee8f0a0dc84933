package app

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
)

// Attempt gate backends.
const (
	AttemptBackendMemory = "memory"
	AttemptBackendRedis  = "redis"
)

type Config struct {
	Env                 string        // dev, test, prod (default: dev)
	LogLevel            string        // debug, info, warn, error (default: info)
	LogFormat           string        // json, text (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // graceful shutdown timeout (default: 10s)

	Issuer           string   // iss claim of minted tokens
	Audience         []string // aud claim of minted tokens
	AllowedIssuers   []string // iss values the validator accepts
	AllowedAudiences []string // aud values the validator accepts

	SigningKeys string // kid::base64(PKCS8) entries joined by '|'
	ActiveKID   string // defaults to the first kid
	Algorithm   string // ephemeral dev key kind (default: RS256)
	RSABits     int    // ephemeral RS256 key size (default: 2048)

	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	Leeway         time.Duration
	EpochRetention time.Duration

	DatabaseFile string // SQLite file (default: ./auth.db)
	PepperFile   string // argon2 pepper file (default: ./pepper)

	RedisURL       string
	RedisOpTimeout time.Duration

	AttemptBackend       string
	AttemptThreshold     int
	AttemptWindow        time.Duration
	AttemptSweepSchedule string

	Captcha service.CaptchaConfig
}

// LoadConfig reads the environment. In dev a .env file in the working
// directory is loaded first; variables already set win.
func LoadConfig() Config {
	env := getEnvOrDefault("ENV", "dev")
	if env == "dev" {
		_ = godotenv.Load()
	}

	cfg := Config{
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		Issuer:           getEnvOrDefault("AUTH_ISSUER", "auth-service"),
		Audience:         getEnvListOrDefault("AUTH_AUDIENCE", []string{"converter-backend"}),
		AllowedIssuers:   getEnvListOrDefault("AUTH_ALLOWED_ISSUERS", []string{"auth-service", "converter-backend"}),
		AllowedAudiences: getEnvListOrDefault("AUTH_ALLOWED_AUDIENCES", []string{"converter-backend", "converter-api"}),

		SigningKeys: os.Getenv("AUTH_SIGNING_KEYS"),
		ActiveKID:   os.Getenv("AUTH_ACTIVE_KID"),
		Algorithm:   getEnvOrDefault("AUTH_ALGORITHM", cryptox.KeyRS256),
		RSABits:     getEnvIntOrDefault("AUTH_RSA_BITS", cryptox.MinRSABits),

		AccessTTL:      getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:     getEnvDurationOrDefault("AUTH_REFRESH_TTL", 30*24*time.Hour),
		Leeway:         getEnvDurationOrDefault("AUTH_LEEWAY", 30*time.Second),
		EpochRetention: getEnvDurationOrDefault("AUTH_EPOCH_RETENTION", 24*time.Hour),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		RedisURL:       getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisOpTimeout: getEnvDurationOrDefault("REDIS_OP_TIMEOUT", 250*time.Millisecond),

		AttemptBackend:       strings.ToLower(getEnvOrDefault("ATTEMPT_BACKEND", AttemptBackendMemory)),
		AttemptThreshold:     getEnvIntOrDefault("ATTEMPT_THRESHOLD", 3),
		AttemptWindow:        getEnvDurationOrDefault("ATTEMPT_WINDOW", 15*time.Minute),
		AttemptSweepSchedule: getEnvOrDefault("ATTEMPT_SWEEP_SCHEDULE", service.DefaultSweepSchedule),

		Captcha: service.CaptchaConfig{
			Provider:  strings.ToLower(getEnvOrDefault("CAPTCHA_PROVIDER", service.CaptchaReCaptcha)),
			Secret:    os.Getenv("CAPTCHA_SECRET"),
			VerifyURL: os.Getenv("CAPTCHA_VERIFY_URL"),
			DevBypass: getEnvBoolOrDefault("CAPTCHA_DEV_BYPASS", false),
			MinScore:  getEnvFloatOrDefault("CAPTCHA_MIN_SCORE", service.DefaultCaptchaMinScore),
		},
	}

	return cfg
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool { return c.Env == "prod" }

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"dev", "test", "prod"}, c.Env) {
		errs = append(errs, fmt.Errorf("ENV must be dev, test or prod, got %q", c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if strings.TrimSpace(c.Issuer) == "" {
		errs = append(errs, errors.New("AUTH_ISSUER must not be empty"))
	}
	if len(c.AllowedIssuers) == 0 || len(c.AllowedAudiences) == 0 {
		errs = append(errs, errors.New("AUTH_ALLOWED_ISSUERS and AUTH_ALLOWED_AUDIENCES must not be empty"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive"))
	}
	if c.RefreshTTL > 0 && c.AccessTTL > c.RefreshTTL {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL must not exceed AUTH_REFRESH_TTL"))
	}
	if c.Leeway < 0 {
		errs = append(errs, errors.New("AUTH_LEEWAY must not be negative"))
	}
	if c.EpochRetention < c.AccessTTL {
		errs = append(errs, errors.New("AUTH_EPOCH_RETENTION must cover AUTH_ACCESS_TTL"))
	}
	if c.IsProd() && strings.TrimSpace(c.SigningKeys) == "" {
		errs = append(errs, errors.New("AUTH_SIGNING_KEYS is required in prod"))
	}
	if c.RedisOpTimeout <= 0 {
		errs = append(errs, errors.New("REDIS_OP_TIMEOUT must be positive"))
	}
	if c.AttemptBackend != AttemptBackendMemory && c.AttemptBackend != AttemptBackendRedis {
		errs = append(errs, fmt.Errorf("ATTEMPT_BACKEND must be memory or redis, got %q", c.AttemptBackend))
	}
	if c.AttemptThreshold <= 0 || c.AttemptWindow <= 0 {
		errs = append(errs, errors.New("ATTEMPT_THRESHOLD and ATTEMPT_WINDOW must be positive"))
	}
	if c.Captcha.Provider != service.CaptchaReCaptcha && c.Captcha.Provider != service.CaptchaHCaptcha {
		errs = append(errs, fmt.Errorf("CAPTCHA_PROVIDER must be recaptcha or hcaptcha, got %q", c.Captcha.Provider))
	}
	if c.IsProd() && c.Captcha.DevBypass {
		errs = append(errs, errors.New("CAPTCHA_DEV_BYPASS must be off in prod"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma separated list, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
