package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// IntrospectHandler serves POST /v1/internal/introspect. It runs the same
// check as the authenticated routes, revocation included.
type IntrospectHandler struct {
	Sessions *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Introspect a user token
//	@Description	Reports whether an access token is usable right now. Inactive tokens only carry active=false.
//	@Tags			Internal
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.IntrospectRequest		true	"token"
//	@Success		200		{object}	authsdk.IntrospectionResponse	"active and, when active, the claims"
//	@Failure		400		{object}	authsdk.APIError				"invalid_request"
//	@Failure		401		{object}	authsdk.APIError				"invalid_token"
//	@Failure		403		{object}	authsdk.APIError				"insufficient_role"
//	@Router			/v1/internal/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.IntrospectRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.Sessions.Authenticate(ctx, httpx.StripBearer(req.Token))
	if err != nil {
		slogx.FromContext(ctx).Debug("introspected token inactive", "err", err)
		httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{Active: false})
		return
	}

	out := authsdk.IntrospectionResponse{
		Active:    true,
		Subject:   c.Subject,
		Roles:     c.Roles,
		DeviceID:  c.DeviceID,
		JTI:       c.ID,
		TokenType: string(c.Kind),
		Issuer:    c.Issuer,
		Audience:  c.Audience,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Unix()
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
