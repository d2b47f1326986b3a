package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"cantogame/internal/observe"
	"cantogame/internal/security"
)

// RouterConfig wires the handlers into a router
type RouterConfig struct {
	Game    *GameHandler
	Stats   *StatsHandler
	Auth    *Authenticator
	Limiter *security.RateLimiter

	// Metrics records request durations when set
	Metrics *observe.Metrics

	// MetricsHandler serves /metrics when set
	MetricsHandler http.Handler

	// Health reports whether dependencies are reachable
	Health func(ctx context.Context) error
}

// NewRouter builds the HTTP routes
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	if cfg.Metrics != nil {
		r.Use(observe.Middleware(cfg.Metrics))
	}

	r.HandleFunc("/healthz", healthHandler(cfg.Health)).Methods(http.MethodGet)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(cfg.Auth.Middleware)

	api.HandleFunc("/games/start", cfg.Game.StartSession).Methods(http.MethodPost)
	api.HandleFunc("/games/{sessionId}", cfg.Game.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/games/{sessionId}/end", cfg.Game.EndSession).Methods(http.MethodPost)

	var submit http.Handler = http.HandlerFunc(cfg.Game.SubmitAttempt)
	if cfg.Limiter != nil {
		submit = RateLimit(cfg.Limiter)(submit)
	}
	api.Handle("/games/{sessionId}/attempts", submit).Methods(http.MethodPost)

	api.HandleFunc("/statistics", cfg.Stats.GetStatistics).Methods(http.MethodGet)
	api.HandleFunc("/words/error-ratios", cfg.Stats.GetErrorRatios).Methods(http.MethodGet)
	api.HandleFunc("/students", cfg.Stats.ListStudents).Methods(http.MethodGet)

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respondWithError(w, http.StatusServiceUnavailable, "unhealthy", "health check failed", err)
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
