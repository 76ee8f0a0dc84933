package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
)

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	Accounts *service.AccountService
	Cookies  CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		Login
//	@Description	Verifies username and password and opens a session.
//	@Description	After repeated failures from the same client IP a captcha_token is required.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"username, password, optional captcha_token"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in"
//	@Failure		400		{object}	authsdk.APIError		"invalid_request"
//	@Failure		401		{object}	authsdk.APIError		"invalid_credentials"
//	@Failure		429		{object}	authsdk.APIError		"captcha_required, invalid_captcha, rate_limit_exceeded"
//	@Header			200		{string}	Set-Cookie				"refresh_token"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	pair, err := h.Accounts.Login(r.Context(), service.LoginRequest{
		Username:     req.Username,
		Password:     req.Password,
		CaptchaToken: req.CaptchaToken,
		ClientIP:     httpx.ClientIP(r),
		DeviceID:     httpx.DeviceID(r),
	})
	if err != nil {
		writeServiceError(w, r, err, authsdk.ErrInvalidCredentials)
		return
	}

	writeTokens(w, http.StatusOK, pair, h.Cookies)
}
