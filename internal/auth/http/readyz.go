package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
)

// Pinger is a dependency readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness
//	@Description	Checks the user database, the revocation store and the signing keys.
//	@Description	Any failing check makes the service unready.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, db, redis Pinger, keys KeySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		checks := &authsdk.HealthChecks{Database: "ok", Redis: "ok", Signer: "ok"}
		ok := true

		if err := db.Ping(ctx); err != nil {
			checks.Database = "error: " + err.Error()
			ok = false
		}
		if err := redis.Ping(ctx); err != nil {
			checks.Redis = "error: " + err.Error()
			ok = false
		}
		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			ok = false
		}

		resp := authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		}
		status := http.StatusOK
		if !ok {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, status, resp)
	}
}
