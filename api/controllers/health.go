package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/casafindr/casafindr-sync/api/responses"
	"github.com/casafindr/casafindr-sync/pkg/config"
	"github.com/casafindr/casafindr-sync/pkg/db"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/redis"
)

const readyProbeTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CasaFindr-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the durable store and, when wired, the delivery guard.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CasaFindr-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]string{"db": "ok"}
		if err := dbP.Ping(ctx); err != nil {
			logg.Error(ctx, "readiness db ping failed", err)
			checks["db"] = "down"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, checks)
			return
		}

		if redisP != nil {
			checks["redis"] = "ok"
			if err := redisP.Ping(ctx); err != nil {
				logg.Error(ctx, "readiness redis ping failed", err)
				checks["redis"] = "down"
				responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, checks)
				return
			}
		}

		responses.WriteSuccess(w, checks)
	}
}
