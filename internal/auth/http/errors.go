package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tollgate/internal/auth/revocation"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// tokenRejections are the errors that mean "this token cannot be used",
// whichever check produced them.
var tokenRejections = []error{
	jwtx.ErrMalformed,
	jwtx.ErrAlgMismatch,
	jwtx.ErrUnknownKID,
	jwtx.ErrInvalidSig,
	jwtx.ErrIssuer,
	jwtx.ErrAudience,
	jwtx.ErrExpired,
	jwtx.ErrNotYetValid,
	service.ErrNotAllowed,
	service.ErrBlacklisted,
	service.ErrRevoked,
	service.ErrWrongTokenKind,
	service.ErrNotServiceToken,
	revocation.ErrStoreUnavailable,
}

func isTokenRejection(err error) bool {
	for _, target := range tokenRejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeServiceError writes the API error for err. Token failures all
// collapse into rejected so clients never learn which check failed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, rejected *authsdk.APIError) {
	var apiErr *authsdk.APIError
	switch {
	case errors.Is(err, service.ErrCaptchaRequired):
		apiErr = authsdk.ErrCaptchaRequired
	case errors.Is(err, service.ErrCaptchaInvalid):
		apiErr = authsdk.ErrInvalidCaptcha
	case errors.Is(err, service.ErrUserExists):
		apiErr = authsdk.ErrUserExists
	case errors.Is(err, service.ErrInvalidCredentials):
		apiErr = authsdk.ErrInvalidCredentials
	case isTokenRejection(err):
		apiErr = rejected
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		apiErr = authsdk.ErrServerError
	}
	apiErr.WriteError(w)
}
