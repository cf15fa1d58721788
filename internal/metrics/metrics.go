package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del pipeline POS. Definidas en un package standalone para
// evitar ciclos de import entre correlate/dispatch y el server HTTP.

var (
	EventsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_events_ingested_total",
		Help: "Eventos crudos recibidos por canal",
	}, []string{"channel"})

	PendingOpen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_pending_opened_total",
		Help: "Transacciones cash parqueadas esperando segunda fase",
	})

	PendingResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_pending_resolved_total",
		Help: "Pendientes resueltas por camino (matched|fallback)",
	}, []string{"path"})

	Classified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_transactions_classified_total",
		Help: "Transacciones clasificadas por kind",
	}, []string{"kind"})

	PayloadValidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_payload_validation_failures_total",
		Help: "Payloads que no pudieron satisfacer invariantes requeridos",
	})

	DispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_dispatch_outcomes_total",
		Help: "Resultado final de cada dispatch (sent|rejected|transient|auth|skipped)",
	}, []string{"endpoint", "outcome"})

	DispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_dispatch_latency_ms",
		Help:    "Latencia del envío al Data API en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	TokenRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_token_refreshes_total",
		Help: "Intercambios client-credentials realizados",
	})
)

// Register registra todo en el registry dado (o el default si es nil).
// Tolerante a doble registro para no romper en tests.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{
		EventsIngested,
		PendingOpen,
		PendingResolved,
		Classified,
		PayloadValidationFailures,
		DispatchOutcomes,
		DispatchLatency,
		TokenRefreshes,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
