// Package metrics exposes bridge counters over a small Prometheus endpoint.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds every instrument the bridge records into.
type Metrics struct {
	// Commands counts command dispositions by result: deduped,
	// dropped_offline, empty, suppressed, published.
	Commands          *prometheus.CounterVec
	Exchanges         prometheus.Counter
	EmptyResponses    prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	ResetSignatures   prometheus.Counter
	Heartbeats        prometheus.Counter
	SessionOnline     prometheus.Gauge
	LinkQuality       prometheus.Gauge
	BringupOutcomes   *prometheus.CounterVec
}

// New builds and registers the bridge metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xdm_commands_total",
			Help: "Commands received from the broker, by disposition.",
		}, []string{"result"}),
		Exchanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xdm_exchanges_total",
			Help: "Serial write+drain exchanges performed.",
		}),
		EmptyResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xdm_empty_responses_total",
			Help: "Queries that produced no serial response.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xdm_status_transitions_total",
			Help: "Retained status publications, by new state.",
		}, []string{"state"}),
		ResetSignatures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xdm_reset_signatures_total",
			Help: "Instrument reset signatures seen on the serial line.",
		}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xdm_heartbeats_total",
			Help: "Heartbeat messages published.",
		}),
		SessionOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xdm_session_online",
			Help: "1 while the instrument session is considered online.",
		}),
		LinkQuality: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xdm_link_quality_percent",
			Help: "Last published Wi-Fi link quality percentage.",
		}),
		BringupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xdm_bringup_outcomes_total",
			Help: "Bring-up sequence outcomes.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.Commands,
		m.Exchanges,
		m.EmptyResponses,
		m.StatusTransitions,
		m.ResetSignatures,
		m.Heartbeats,
		m.SessionOnline,
		m.LinkQuality,
		m.BringupOutcomes,
	)
	return m
}

// Serve exposes g on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("metrics endpoint up")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
