// Package http expone la superficie operacional del bridge: health,
// estado del pipeline y métricas Prometheus. No expone nada del dominio;
// el POS habla por los canales seriales, no por acá.
package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dropDatabas3/posbridge/internal/dispatch"
	"github.com/dropDatabas3/posbridge/internal/observability/logger"
)

// Deps son las sondas de estado que el server consulta. Todas opcionales:
// nil se reporta como ausente, no rompe.
type Deps struct {
	PendingCount func() int
	PoolStats    func() dispatch.Stats
	TokenExpiry  func() time.Time
	AlertStreak  func() int
}

type statusResponse struct {
	Status      string         `json:"status"`
	Pending     int            `json:"pending"`
	Dispatch    dispatch.Stats `json:"dispatch"`
	TokenExpiry string         `json:"token_expiry,omitempty"`
	FailStreak  int            `json:"failure_streak"`
	UptimeSecs  int64          `json:"uptime_seconds"`
}

// NewRouter arma el router operacional.
func NewRouter(deps Deps) stdhttp.Handler {
	start := time.Now()
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/readyz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		resp := statusResponse{
			Status:     "ok",
			UptimeSecs: int64(time.Since(start).Seconds()),
		}
		if deps.PendingCount != nil {
			resp.Pending = deps.PendingCount()
		}
		if deps.PoolStats != nil {
			resp.Dispatch = deps.PoolStats()
		}
		if deps.TokenExpiry != nil {
			if exp := deps.TokenExpiry(); !exp.IsZero() {
				resp.TokenExpiry = exp.UTC().Format(time.RFC3339)
			}
		}
		if deps.AlertStreak != nil {
			resp.FailStreak = deps.AlertStreak()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Method(stdhttp.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Serve corre el server hasta que el contexto se cancele; el shutdown da
// 5s de gracia a los requests en vuelo.
func Serve(ctx context.Context, addr string, handler stdhttp.Handler) error {
	srv := &stdhttp.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	log := logger.Named("http")
	log.Info("ops server listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}
