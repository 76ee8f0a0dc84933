package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

// TestJWKSVerification verifies that tokens issued by the service can be
// checked offline with the published keys.
func TestJWKSVerification(t *testing.T) {
	svc := setupAuthService(t)
	session := registerUser(t, svc.Client, "alice")

	jwks, err := svc.Client.GetJWKS(t.Context())
	require.NoError(t, err, "Should fetch JWKS successfully")
	require.NotEmpty(t, jwks.Keys, "JWKS should contain at least one key")
	for _, key := range jwks.Keys {
		t.Logf("Key ID: %s, Algorithm: %s, Use: %s", key.Kid, key.Alg, key.Use)
	}

	keys, err := authsdk.NewRemoteKeySet(t.Context(), svc.Client)
	require.NoError(t, err)

	validator := jwtx.NewValidator(keys, jwtx.ValidatorOptions{
		Issuers:   []string{testIssuer},
		Audiences: []string{testAudience},
	})

	claims, err := validator.Validate(session.AccessToken())
	require.NoError(t, err, "Should verify access token successfully")
	require.NotEmpty(t, claims.Subject)
	require.Equal(t, testIssuer, claims.Issuer)
	require.Equal(t, jwtx.KindAccess, claims.Kind)
	require.Equal(t, []string{"USER"}, claims.Roles)

	claims, err = validator.Validate(session.RefreshToken())
	require.NoError(t, err)
	require.Equal(t, jwtx.KindRefresh, claims.Kind)
}
