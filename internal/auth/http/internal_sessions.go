package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// HeaderUser carries the end user's subject on gateway calls.
const HeaderUser = "X-User"

// RevokeSessionsHandler serves POST /v1/internal/sessions/revoke for
// gateways holding a service token.
type RevokeSessionsHandler struct {
	Sessions *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Revoke a user's sessions
//	@Description	Ends every session of the subject named in the body or the X-User header. Requires a service token.
//	@Tags			Internal
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.RevokeSessionsRequest	false	"sub, revoke_access"
//	@Param			X-User	header		string							false	"subject, when not in the body"
//	@Success		200		{object}	authsdk.StatusResponse			"status"
//	@Failure		400		{object}	authsdk.APIError				"invalid_request"
//	@Failure		401		{object}	authsdk.APIError				"invalid_token"
//	@Failure		403		{object}	authsdk.APIError				"insufficient_role"
//	@Router			/v1/internal/sessions/revoke [post].
func (h *RevokeSessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RevokeSessionsRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sub := strings.TrimSpace(req.Subject)
	if sub == "" {
		sub = strings.TrimSpace(r.Header.Get(HeaderUser))
	}
	if sub == "" {
		authsdk.ErrInvalidRequest.WithDetails(map[string]string{"sub": "is required"}).WriteError(w)
		return
	}

	if c, ok := httpx.ClaimsFromContext(ctx); ok {
		slogx.FromContext(ctx).Info("sessions revoked by service",
			"service", service.ServiceName(c),
			"sub", sub,
		)
	}

	if err := h.Sessions.LogoutAll(ctx, sub, req.RevokeAccess); err != nil {
		writeServiceError(w, r, err, authsdk.ErrInvalidRequest)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusOK)
}
