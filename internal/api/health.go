package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health answers liveness probes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness answers readiness probes; with a pool configured it also pings
// the database.
func readiness(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := pool.Ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database ping failed")

				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}
