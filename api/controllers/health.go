package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	envHeader          = "X-Storefront-Env"
	readyCheckTimeout  = 2 * time.Second
	statusLive         = "live"
	statusReady        = "ready"
	statusNotReady     = "not_ready"
	dependencyUp       = "up"
	dependencyDown     = "down"
	dependencyDisabled = "disabled"
)

// Pinger is any dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency names a readiness check. A nil Pinger reports as disabled.
type Dependency struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "status": statusLive})
	}
}

// HealthReady pings every dependency and answers 503 when any is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		ready := true
		for _, dep := range deps {
			if dep.Pinger == nil {
				checks[dep.Name] = dependencyDisabled
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				ready = false
				checks[dep.Name] = dependencyDown
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", dep.Name), "readiness check failed", err)
				}
				continue
			}
			checks[dep.Name] = dependencyUp
		}

		w.Header().Set(envHeader, cfg.App.Env)
		status, code := statusReady, http.StatusOK
		if !ready {
			status, code = statusNotReady, http.StatusServiceUnavailable
		}
		responses.WriteJSON(w, code, map[string]any{
			"success": ready,
			"status":  status,
			"checks":  checks,
		})
	}
}
