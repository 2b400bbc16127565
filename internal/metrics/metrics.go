// Package metrics registers the engine's Prometheus instrumentation and the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TradesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "trades_ingested_total", Help: "Normalized trade prints applied to the market store"},
	)
	BookUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "book_updates_total", Help: "Order book snapshot messages applied to the market store"},
	)
	DroppedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dropped_events_total", Help: "Upstream events rejected at the ingestion boundary"},
		[]string{"reason"},
	)
	EvalTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "eval_ticks_total", Help: "Evaluation timer ticks processed"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted to subscribers"},
		[]string{"direction"},
	)
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ws_subscribers", Help: "Connected broadcast subscribers"},
	)
)

func init() {
	prometheus.MustRegister(TradesTotal, BookUpdatesTotal, DroppedEventsTotal, EvalTicksTotal, SignalsTotal, Subscribers)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
