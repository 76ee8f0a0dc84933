package authsdk

import (
	"context"
	"net/http"
)

// Register creates an account and returns its first token pair.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/register", req, nil)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusCreated); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Login exchanges credentials for a token pair. After repeated failures the
// service answers ErrCaptchaRequired until a valid CaptchaToken is sent.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login", req, nil)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh redeems refreshToken. priorAccessToken, if known, is revoked as
// part of the rotation; otherwise every older access token of the user is.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken, priorAccessToken string) (*TokenResponse, error) {
	var headers map[string]string
	if priorAccessToken != "" {
		headers = map[string]string{"X-Access-Token": priorAccessToken}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, headers)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout revokes accessToken and, when given, refreshToken.
func (c *SDKClient) Logout(ctx context.Context, accessToken, refreshToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/logout", RefreshRequest{RefreshToken: refreshToken}, bearer(accessToken))
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusOK)
}

// LogoutAll ends every session of the token's owner.
func (c *SDKClient) LogoutAll(ctx context.Context, accessToken string, revokeAccess bool) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/logout-all", LogoutAllRequest{RevokeAccess: revokeAccess}, bearer(accessToken))
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusOK)
}

// Me returns the claims of accessToken as the service sees them.
func (c *SDKClient) Me(ctx context.Context, accessToken string) (*MeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/me", nil, bearer(accessToken))
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}
