package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// HealthResponse reports server and database liveness.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Healthz returns a liveness handler that also pings the database.
func Healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Database: "ok"}

		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			resp.Database = "unavailable"
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
