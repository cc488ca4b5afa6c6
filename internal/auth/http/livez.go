package http

import (
	"net/http"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
)

// HealthHandler godoc
//
//	@Summary		Legacy health probe
//	@Description	Always answers {"ok": true} while the process is up.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.OKResponse
//	@Router			/health [get].
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
	}
}

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Returns 200 with uptime and version while the service is running.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}
