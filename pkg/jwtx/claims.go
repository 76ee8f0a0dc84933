package jwtx

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind is carried in the token_type claim and keeps refresh tokens from
// being accepted where an access token is expected, and the other way round.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// reservedClaims may never be supplied through Claims.Extra.
var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
	"token_type": {}, "roles": {}, "device_id": {},
}

// Claims is the claim set shared by every token we mint.
type Claims struct {
	jwt.RegisteredClaims

	Kind TokenKind `json:"token_type,omitempty"`

	// Roles in the order they were granted.
	Roles []string `json:"roles,omitempty"`

	DeviceID string `json:"device_id,omitempty"`

	// Extra holds additional top-level claims. Values must be strings,
	// booleans or numbers; decoded numbers come back as float64.
	Extra map[string]any `json:"-"`
}

// wireClaims is Claims without the custom marshalling.
type wireClaims struct {
	jwt.RegisteredClaims
	Kind     TokenKind `json:"token_type,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	DeviceID string    `json:"device_id,omitempty"`
}

// NewJTI returns a fresh random identifier for the jti claim.
func NewJTI() string {
	return uuid.NewString()
}

// CheckExtra reports whether every Extra entry is a primitive under a
// non-reserved name.
func (c Claims) CheckExtra() error {
	for k, v := range c.Extra {
		if _, ok := reservedClaims[k]; ok || k == "" {
			return fmt.Errorf("%w: extra claim %q is reserved", ErrInvalidClaim, k)
		}
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("%w: extra claim %q has unsupported type %T", ErrInvalidClaim, k, v)
		}
	}
	return nil
}

// MarshalJSON flattens Extra into the top-level object.
func (c Claims) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(wireClaims{
		RegisteredClaims: c.RegisteredClaims,
		Kind:             c.Kind,
		Roles:            c.Roles,
		DeviceID:         c.DeviceID,
	})
	if err != nil || len(c.Extra) == 0 {
		return base, err
	}
	if err := c.CheckExtra(); err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// UnmarshalJSON collects unknown primitive claims into Extra. Reserved names
// and structured values are dropped.
func (c *Claims) UnmarshalJSON(b []byte) error {
	var w wireClaims
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*c = Claims{
		RegisteredClaims: w.RegisteredClaims,
		Kind:             w.Kind,
		Roles:            w.Roles,
		DeviceID:         w.DeviceID,
	}
	for k, v := range raw {
		if _, ok := reservedClaims[k]; ok {
			continue
		}
		switch v.(type) {
		case string, bool, float64:
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[k] = v
		}
	}
	return nil
}

// ExtraString returns Extra[key] when it is a string.
func (c *Claims) ExtraString(key string) string {
	s, _ := c.Extra[key].(string)
	return s
}

// HasRole reports whether role was granted.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Remaining is the time left until exp, never negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}

// ValidateIssuer checks the issuer against an allow-list. An empty list
// enforces nothing.
func (c *Claims) ValidateIssuer(allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	if !slices.Contains(allowed, c.Issuer) {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that at least one allowed audience is present.
func (c *Claims) ValidateAudience(allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, want := range allowed {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateTimes checks exp and nbf against now with a grace period for clock
// skew. A token without exp is malformed.
func (c *Claims) ValidateTimes(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return fmt.Errorf("%w: missing exp", ErrMalformed)
	}
	if c.ExpiresAt.Before(now.Add(-leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && c.NotBefore.After(now.Add(leeway)) {
		return ErrNotYetValid
	}
	return nil
}
