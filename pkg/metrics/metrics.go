// Package metrics exposes CPU readings as Prometheus gauges.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mscrnt/ring0/pkg/hardware/cpu"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the sampling metrics. Each Metrics owns its registry.
type Metrics struct {
	Registry *prometheus.Registry

	TjMax        prometheus.Gauge
	PackageTemp  prometheus.Gauge
	Ratio        prometheus.Gauge
	FrequencyMHz prometheus.Gauge
	LastSample   prometheus.Gauge
	Samples      prometheus.Counter
	Failures     prometheus.Counter
}

// New creates the sampling metrics, labelled with the CPU identity.
func New(rec cpu.Record) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"vendor": rec.Vendor, "brand": rec.Brand}

	return &Metrics{
		Registry: reg,
		TjMax: f.NewGauge(prometheus.GaugeOpts{
			Name:        "ring0_cpu_tjmax_celsius",
			Help:        "Maximum junction temperature reported by the CPU",
			ConstLabels: labels,
		}),
		PackageTemp: f.NewGauge(prometheus.GaugeOpts{
			Name:        "ring0_cpu_package_temperature_celsius",
			Help:        "CPU package temperature",
			ConstLabels: labels,
		}),
		Ratio: f.NewGauge(prometheus.GaugeOpts{
			Name:        "ring0_cpu_ratio",
			Help:        "Current core clock multiplier",
			ConstLabels: labels,
		}),
		FrequencyMHz: f.NewGauge(prometheus.GaugeOpts{
			Name:        "ring0_cpu_frequency_mhz",
			Help:        "Current core clock in MHz",
			ConstLabels: labels,
		}),
		LastSample: f.NewGauge(prometheus.GaugeOpts{
			Name:        "ring0_last_sample_timestamp_seconds",
			Help:        "Unix time of the last successful sample",
			ConstLabels: labels,
		}),
		Samples: f.NewCounter(prometheus.CounterOpts{
			Name:        "ring0_samples_total",
			Help:        "Number of successful samples",
			ConstLabels: labels,
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name:        "ring0_sample_failures_total",
			Help:        "Number of failed samples",
			ConstLabels: labels,
		}),
	}
}

// Observe records a successful reading.
func (m *Metrics) Observe(rec cpu.Record) {
	m.TjMax.Set(float64(rec.TjMax))
	m.PackageTemp.Set(float64(rec.PackageTemp))
	m.Ratio.Set(float64(rec.Ratio))
	m.FrequencyMHz.Set(float64(rec.FrequencyMHz))
	if !rec.UpdatedAt.IsZero() {
		m.LastSample.Set(float64(rec.UpdatedAt.Unix()))
	}
	m.Samples.Inc()
}

// Fail records a failed reading.
func (m *Metrics) Fail(error) {
	m.Failures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Server serves /metrics until Shutdown.
type Server struct {
	srv *http.Server
	log logrus.FieldLogger
}

// Serve starts an HTTP server for m on addr in the background.
func Serve(addr string, m *Metrics, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.WithField("addr", addr),
	}

	go func() {
		s.log.Info("Serving metrics")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Metrics server failed")
		}
	}()
	return s
}

// Shutdown stops the server, waiting up to five seconds for open requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
