package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Commands.WithLabelValues("published").Inc()
	m.Commands.WithLabelValues("deduped").Add(2)
	m.SessionOnline.Set(1)
	m.LinkQuality.Set(84)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("published")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("deduped")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionOnline))
	require.Equal(t, 84.0, testutil.ToFloat64(m.LinkQuality))
}

func TestNewPanicsOnDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}

func TestServeExposesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Heartbeats.Inc()

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "xdm_heartbeats_total 1")
}

func TestServeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", prometheus.NewRegistry()) }()

	cancel()
	require.NoError(t, <-done)
}
