package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "auth-service"
	testAudience = "converter-backend"
)

var t0 = time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC)

type testKey struct {
	kid  string
	kind string
}

// keyConfig generates fresh keys and renders them as a key configuration
// string.
func keyConfig(t *testing.T, keys ...testKey) string {
	t.Helper()

	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		der, err := cryptox.GenerateSigningKey(k.kind, 0)
		require.NoError(t, err)
		entries = append(entries, jwtx.FormatKeyEntry(k.kid, der))
	}
	return strings.Join(entries, jwtx.KeyEntrySeparator)
}

func newKeyStore(t *testing.T, active string, keys ...testKey) *jwtx.KeyStore {
	t.Helper()

	ks, err := jwtx.NewKeyStore(keyConfig(t, keys...), active)
	require.NoError(t, err)
	return ks
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newIssuer(keys jwtx.SigningKeys, now time.Time) *jwtx.TokenIssuer {
	return jwtx.NewIssuer(keys, jwtx.IssuerConfig{
		Issuer:   testIssuer,
		Audience: []string{testAudience},
		Now:      fixedClock(now),
	})
}

func newValidator(keys jwtx.KeyResolver, now time.Time) *jwtx.Validator {
	return jwtx.NewValidator(keys, jwtx.ValidatorOptions{
		Issuers:   []string{testIssuer, testAudience},
		Audiences: []string{testAudience, "converter-api"},
		Leeway:    30 * time.Second,
		Now:       fixedClock(now),
	})
}
