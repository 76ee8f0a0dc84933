package authsdk

import (
	"context"
	"net/http"
)

// RevokeSessions ends every session of req.Subject. serviceToken must carry
// the INTERNAL role.
func (c *SDKClient) RevokeSessions(ctx context.Context, serviceToken string, req RevokeSessionsRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/internal/sessions/revoke", req, bearer(serviceToken))
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusOK)
}

// Introspect asks the service whether a user token is usable right now,
// revocation included.
func (c *SDKClient) Introspect(ctx context.Context, serviceToken, token string) (*IntrospectionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/internal/introspect", IntrospectRequest{Token: token}, bearer(serviceToken))
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
