package authsdk

import (
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	// AccessToken is the signed access JWT.
	AccessToken string `json:"access_token"`

	// RefreshToken is the signed refresh JWT. It is also set as the
	// refresh_token cookie.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// RefreshRequest redeems a refresh token. The token may be omitted when the
// refresh_token cookie is sent instead.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty" validate:"omitempty,max=4096"`
}

// ============================================================================
// Account Types
// ============================================================================

type RegisterRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=50,username"`
	Email        string `json:"email" validate:"required,email,max=100"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	CaptchaToken string `json:"captcha_token,omitempty" validate:"omitempty,max=4096"`
}

type LoginRequest struct {
	Username     string `json:"username" validate:"required,max=50"`
	Password     string `json:"password" validate:"required,max=128"`
	CaptchaToken string `json:"captcha_token,omitempty" validate:"omitempty,max=4096"`
}

// LogoutAllRequest ends every session of the caller. With RevokeAccess the
// caller's outstanding access tokens stop working too.
type LogoutAllRequest struct {
	RevokeAccess bool `json:"revoke_access"`
}

// StatusResponse acknowledges operations without a payload.
type StatusResponse struct {
	Status string `json:"status"`
}

// MeResponse describes the caller as seen in its access token.
type MeResponse struct {
	Subject   string   `json:"sub"`
	Roles     []string `json:"roles"`
	DeviceID  string   `json:"device_id,omitempty"`
	JTI       string   `json:"jti"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
}

// ============================================================================
// Internal Types
// ============================================================================

// RevokeSessionsRequest is sent by gateways holding a service token. The
// subject may also be supplied in the X-User header.
type RevokeSessionsRequest struct {
	Subject      string `json:"sub,omitempty" validate:"omitempty,max=128"`
	RevokeAccess bool   `json:"revoke_access"`
}

type IntrospectRequest struct {
	Token string `json:"token" validate:"required,max=8192"`
}

// IntrospectionResponse reports whether a user token is currently usable.
// Only Active is set for unusable tokens.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Subject   string   `json:"sub,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	DeviceID  string   `json:"device_id,omitempty"`
	JTI       string   `json:"jti,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	Issuer    string   `json:"iss,omitempty"`
	Audience  []string `json:"aud,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Signer   string `json:"signer"`
}

// ============================================================================
// JWKS Types
// ============================================================================

type JWKSResponse = jwtx.JWKS
