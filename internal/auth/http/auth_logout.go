package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

var statusOK = authsdk.StatusResponse{Status: "ok"}

// LogoutHandler serves POST /v1/auth/logout. It always answers 200 so the
// client can drop its tokens whatever state they were in.
type LogoutHandler struct {
	Sessions *service.SessionService
	Cookies  CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		Logout
//	@Description	Revokes the bearer access token and the refresh token from the body or cookie, and clears the cookie.
//	@Description	Always returns 200, even for missing or invalid tokens.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.RefreshRequest	false	"refresh_token"
//	@Success		200		{object}	authsdk.StatusResponse	"status"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RefreshRequest
	_ = httpx.DecodeJSON(w, r, &req)

	refresh := req.RefreshToken
	if refresh == "" {
		refresh = refreshFromCookie(r)
	}

	if access, ok := httpx.BearerToken(r); ok {
		if err := h.Sessions.Logout(ctx, access, refresh); err != nil {
			slogx.FromContext(ctx).Info("logout incomplete", "err", err)
		}
	}

	h.Cookies.clear(w)
	httpx.WriteJSON(w, http.StatusOK, statusOK)
}

// LogoutAllHandler serves POST /v1/auth/logout-all for the authenticated
// caller.
type LogoutAllHandler struct {
	Sessions *service.SessionService
	Cookies  CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		Logout everywhere
//	@Description	Ends every session of the caller. With revoke_access the caller's outstanding access tokens stop working too.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.LogoutAllRequest	false	"revoke_access"
//	@Success		200		{object}	authsdk.StatusResponse		"status"
//	@Failure		400		{object}	authsdk.APIError			"invalid_request"
//	@Failure		401		{object}	authsdk.APIError			"invalid_token"
//	@Failure		500		{object}	authsdk.APIError			"server_error"
//	@Router			/v1/auth/logout-all [post].
func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LogoutAllRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sub := httpx.SubjectFromContext(r.Context())
	if err := h.Sessions.LogoutAll(r.Context(), sub, req.RevokeAccess); err != nil {
		writeServiceError(w, r, err, authsdk.ErrInvalidToken)
		return
	}

	h.Cookies.clear(w)
	httpx.WriteJSON(w, http.StatusOK, statusOK)
}
