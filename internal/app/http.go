package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/dispatch"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/scheduler"
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router exposes the health probe and the manual dispatch trigger.
func Router(store Pinger, cycle scheduler.Cycle, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Warn("health check failed", zap.Error(err))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/dispatch", func(w http.ResponseWriter, r *http.Request) {
		rep, err := cycle.Run(r.Context())
		code := http.StatusOK
		if err != nil {
			code = http.StatusInternalServerError
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(rep); err != nil {
			log.Warn("encode report", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		}
	})

	return r
}

var _ scheduler.Cycle = (*dispatch.Dispatcher)(nil)
