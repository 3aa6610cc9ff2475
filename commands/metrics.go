package commands

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/metrics"
)

var (
	metricsOnce      sync.Once
	metricsCollector *metrics.Collector
	metricsRegistry  *prometheus.Registry
)

// engineMetrics returns the process-wide pipeline collector and its
// registry. Collectors register once; watch mode rebuilds the engine per
// run but shares this collector across runs.
func engineMetrics() (*metrics.Collector, *prometheus.Registry) {
	metricsOnce.Do(func() {
		metricsRegistry = prometheus.NewRegistry()
		metricsCollector = metrics.New(metricsRegistry)
	})
	return metricsCollector, metricsRegistry
}

// serveMetrics exposes the registry on addr until the server is closed.
// The returned shutdown function is safe to call once.
func serveMetrics(addr string, logger *slog.Logger) func() {
	_, registry := engineMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", addr, "path", "/metrics")

	return func() {
		if err := srv.Close(); err != nil {
			logger.Warn("Failed to close metrics server", "error", err)
		}
	}
}
