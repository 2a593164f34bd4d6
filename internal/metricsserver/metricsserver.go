// Package metricsserver exposes live simulation counters as Prometheus
// gauges, in the teacher's cmd/metrics/metrics_server.go style: one
// gauge vec registered up front, updated in place as progress events
// arrive instead of being recreated per event.
package metricsserver

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cachesim/internal/cachesim"
)

const metricPrefix = "cachesim_"

var gaugeVec = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: metricPrefix + "level_stat",
		Help: "Per-level cache simulation counters, updated as the trace is processed.",
	},
	[]string{"level", "stat"},
)

var eventsProcessed = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: metricPrefix + "events_processed",
	Help: "Total trace events processed so far.",
})

var invalidations = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: metricPrefix + "invalidations_total",
	Help: "MESI invalidations issued by the coherence directory so far.",
})

// Server serves the registered gauges at /metrics until Shutdown.
type Server struct {
	httpServer *http.Server
}

// Start registers the gauge vec and begins serving /metrics on listenAddr.
// Registration is idempotent: a second Start in the same process reuses
// the already-registered collectors instead of erroring.
func Start(listenAddr string) *Server {
	for _, c := range []prometheus.Collector{gaugeVec, eventsProcessed, invalidations} {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				slog.Error("failed to register prometheus collector", slog.String("error", err.Error()))
			}
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	slog.Info("starting metrics server", slog.String("address", listenAddr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server ListenAndServe error", slog.String("error", err.Error()))
		}
	}()
	return &Server{httpServer: srv}
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Update pushes one progress snapshot's counters into the registered
// gauges. Safe to call from the driver's ProgressSink callback.
func Update(p cachesim.ProgressEvent) {
	eventsProcessed.Set(float64(p.Events))
	invalidations.Set(float64(p.Invalidations))

	setLevel("l1d", p.L1D)
	setLevel("l2", p.L2)
	setLevel("l3", p.L3)
}

func setLevel(level string, s cachesim.Stats) {
	gaugeVec.WithLabelValues(level, "hits").Set(float64(s.Hits))
	gaugeVec.WithLabelValues(level, "misses").Set(float64(s.Misses))
	gaugeVec.WithLabelValues(level, "hit_rate").Set(s.HitRate())
}
