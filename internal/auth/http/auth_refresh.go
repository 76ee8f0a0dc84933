package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
)

// RefreshHandler serves POST /v1/auth/refresh.
type RefreshHandler struct {
	Sessions *service.SessionService
	Cookies  CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		Refresh
//	@Description	Redeems a refresh token for a new token pair. Each refresh token works once.
//	@Description	The token is read from the body, falling back to the refresh_token cookie.
//	@Description	The access token being replaced may be sent in X-Access-Token or Authorization; without it
//	@Description	every earlier access token of the user is revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request			body		authsdk.RefreshRequest	false	"refresh_token"
//	@Param			X-Access-Token	header		string					false	"access token being replaced"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in"
//	@Failure		400				{object}	authsdk.APIError		"invalid_request"
//	@Failure		401				{object}	authsdk.APIError		"invalid_refresh"
//	@Header			200				{string}	Set-Cookie				"refresh_token"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	token := req.RefreshToken
	if token == "" {
		token = refreshFromCookie(r)
	}
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	prior := r.Header.Get(httpx.HeaderAccessToken)
	if prior == "" {
		prior, _ = httpx.BearerToken(r)
	}

	// Without a device header the refresh keeps the device bound at login.
	device, _ := httpx.SuppliedDeviceID(r)

	pair, err := h.Sessions.Refresh(r.Context(), service.RefreshRequest{
		RefreshToken:     token,
		PriorAccessToken: prior,
		DeviceID:         device,
	})
	if err != nil {
		writeServiceError(w, r, err, authsdk.ErrInvalidRefresh)
		return
	}

	writeTokens(w, http.StatusOK, pair, h.Cookies)
}
