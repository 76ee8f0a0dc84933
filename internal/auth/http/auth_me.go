package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

// MeHandler godoc
//
//	@Summary		Current user
//	@Description	Returns the claims of the caller's access token.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.MeResponse	"sub, roles, device_id, jti, iat, exp"
//	@Failure		401	{object}	authsdk.APIError	"invalid_token"
//	@Router			/v1/auth/me [get].
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := httpx.ClaimsFromContext(r.Context())
		if !ok {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, meResponse(c))
	}
}

func meResponse(c *jwtx.Claims) authsdk.MeResponse {
	me := authsdk.MeResponse{
		Subject:  c.Subject,
		Roles:    c.Roles,
		DeviceID: c.DeviceID,
		JTI:      c.ID,
	}
	if c.IssuedAt != nil {
		me.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		me.ExpiresAt = c.ExpiresAt.Unix()
	}
	if me.Roles == nil {
		me.Roles = []string{}
	}
	return me
}
