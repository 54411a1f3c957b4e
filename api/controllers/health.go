package controllers

import (
	"context"
	"net/http"

	"github.com/stagecrew/rentline-backend/api/responses"
	"github.com/stagecrew/rentline-backend/pkg/config"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

// Pinger is the reachability probe each backing store exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rentline-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rentline-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					ctx := logg.WithField(r.Context(), "dependency", name)
					logg.Error(ctx, "health.dependency_down", err)
				}
				continue
			}
			checks[name] = "up"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInternal, "dependency not ready").WithDetails(checks))
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
