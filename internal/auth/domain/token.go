package domain

import (
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

// TokenType is the only scheme handed to clients.
const TokenType = "Bearer"

// TokenPair is what login, registration and refresh hand back: a short-lived
// access token and the single-use refresh token that replaces it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime

	// Claims of both tokens, so callers never re-parse what they just minted.
	Access  *jwtx.Claims
	Refresh *jwtx.Claims
}

// RefreshExpiresIn is the remaining lifetime of the refresh token.
func (p *TokenPair) RefreshExpiresIn(now time.Time) time.Duration {
	if p == nil || p.Refresh == nil {
		return 0
	}
	return p.Refresh.Remaining(now)
}
