// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package health exposes run progress as Prometheus metrics behind a
// small HTTP server with liveness and readiness endpoints.
package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the pipeline's collectors. Collectors live on a
// dedicated registry, never the process-global one.
type Metrics struct {
	registry *prometheus.Registry

	InstancesRead      prometheus.Counter
	BatchesForwarded   prometheus.Counter
	PredictionsDecoded prometheus.Counter
	ReadCorrections    prometheus.Counter
	LastLoss           prometheus.Gauge
	LastMicroF1        prometheus.Gauge
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		InstancesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weaktag_instances_read_total",
			Help: "Instances produced by the dataset reader",
		}),
		BatchesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weaktag_batches_forwarded_total",
			Help: "Batches run through the classifier",
		}),
		PredictionsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weaktag_predictions_decoded_total",
			Help: "Instances decoded into prediction records",
		}),
		ReadCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weaktag_read_corrections_total",
			Help: "Leading continuation tags corrected by the reader",
		}),
		LastLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weaktag_last_loss",
			Help: "Loss of the most recent evaluated run",
		}),
		LastMicroF1: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weaktag_last_micro_f1",
			Help: "Micro F1 of the most recent evaluated run",
		}),
	}

	m.registry.MustRegister(
		m.InstancesRead,
		m.BatchesForwarded,
		m.PredictionsDecoded,
		m.ReadCorrections,
		m.LastLoss,
		m.LastMicroF1,
	)
	return m
}

// Registry is the dedicated registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string

	// Metrics served under /metrics.
	Metrics *Metrics

	// Logger for server lifecycle events.
	Logger *zap.Logger
}

// Server serves /healthz, /readyz, and /metrics for one run.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	ready  atomic.Bool
	logger *zap.Logger
}

// NewServer creates a Server bound to its listen address. The readiness
// endpoint reports failure until SetReady(true).
func NewServer(config ServerConfig) (*Server, error) {
	// Validate config
	if config.Addr == "" {
		return nil, fmt.Errorf("health listen address is required")
	}
	if config.Metrics == nil {
		return nil, fmt.Errorf("health metrics are required")
	}

	// Apply defaults for zero values
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &Server{logger: config.Logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ready")
	})
	mux.Handle("/metrics", promhttp.HandlerFor(config.Metrics.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return nil, fmt.Errorf("health listen on %s: %w", config.Addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Start serves requests until Shutdown.
func (s *Server) Start() {
	s.logger.Info("health server listening", zap.String("addr", s.Addr()))
	go func() {
		if err := s.srv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server failed", zap.Error(err))
		}
	}()
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// SetReady flips the readiness endpoint.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Shutdown drains and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
