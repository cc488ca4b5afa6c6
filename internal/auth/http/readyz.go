package http

import (
	"net/http"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Pings the store. Answers 503 while the store is unreachable.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"store unreachable"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{Database: "ok"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			// The reason goes to the log only.
			slogx.FromContext(r.Context()).Warn("readiness check failed", "err", err)
			checks.Database = "error"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
