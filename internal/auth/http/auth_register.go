package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
)

// RegisterHandler serves POST /v1/auth/register.
type RegisterHandler struct {
	Accounts *service.AccountService
	Cookies  CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		Register
//	@Description	Creates a user account and opens its first session.
//	@Description	After repeated failures from the same client IP a captcha_token is required.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"username, email, password, optional captcha_token"
//	@Success		201		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in"
//	@Failure		400		{object}	authsdk.APIError		"invalid_request"
//	@Failure		409		{object}	authsdk.APIError		"user_exists"
//	@Failure		429		{object}	authsdk.APIError		"captcha_required, invalid_captcha, rate_limit_exceeded"
//	@Header			201		{string}	Set-Cookie				"refresh_token"
//	@Router			/v1/auth/register [post].
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	pair, err := h.Accounts.Register(r.Context(), service.RegisterRequest{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		CaptchaToken: req.CaptchaToken,
		ClientIP:     httpx.ClientIP(r),
		DeviceID:     httpx.DeviceID(r),
	})
	if err != nil {
		writeServiceError(w, r, err, authsdk.ErrInvalidRequest)
		return
	}

	writeTokens(w, http.StatusCreated, pair, h.Cookies)
}
