/*
Package authsdk is the client SDK for the tollgate authentication service.

# SDKClient vs Session

SDKClient covers the anonymous endpoints and creates Sessions:

	client := authsdk.NewSDKClient("https://auth.example.com")

	tokens, err := client.Register(ctx, authsdk.RegisterRequest{...})
	session, err := client.AuthenticateWithPassword(ctx, authsdk.LoginRequest{...})

A Session refreshes its access token shortly before it expires. Refresh
tokens are single use: each refresh returns a new pair and the old refresh
token is dead from then on, so a Session must be the only holder of its
refresh token.

	me, err := session.Me(ctx)
	err = session.Logout(ctx)

# Errors

Every failure reported by the service decodes into *APIError. Compare with
errors.Is against the predefined values:

	_, err := client.Login(ctx, req)
	if errors.Is(err, authsdk.ErrCaptchaRequired) {
		// retry with req.CaptchaToken set
	}

# Verifying tokens locally

RemoteKeySet resolves signing keys from the service's JWKS and plugs into
jwtx.NewValidator. It does not see revocations; use Introspect with a
service token when those matter.

	keys, err := authsdk.NewRemoteKeySet(ctx, client)
	v := jwtx.NewValidator(keys, jwtx.ValidatorOptions{...})
*/
package authsdk
