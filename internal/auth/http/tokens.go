package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tollgate/internal/auth/domain"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
)

// writeTokens sends pair as a TokenResponse and sets the refresh cookie.
func writeTokens(w http.ResponseWriter, status int, pair *domain.TokenPair, cookies CookieConfig) {
	cookies.set(w, pair.RefreshToken)
	httpx.WriteJSON(w, status, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    domain.TokenType,
		ExpiresIn:    int(pair.ExpiresIn / time.Second),
	})
}
