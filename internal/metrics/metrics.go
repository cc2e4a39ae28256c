// Package metrics exports tray icon lifecycle counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "xtraybridge"

// Metrics implements trayicon.Recorder.
type Metrics struct {
	requested prometheus.Counter
	added     prometheus.Counter
	removed   prometheus.Counter
	dropped   *prometheus.CounterVec
	live      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icons_requested_total",
			Help:      "Dock requests received from tray clients.",
		}),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icons_added_total",
			Help:      "Icons whose client attached content.",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icons_removed_total",
			Help:      "Added icons that were withdrawn.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icons_dropped_total",
			Help:      "Dock requests abandoned before the icon was added.",
		}, []string{"reason"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "icons_live",
			Help:      "Icons currently being embedded or embedded.",
		}),
	}
	reg.MustRegister(m.requested, m.added, m.removed, m.dropped, m.live)
	return m
}

func (m *Metrics) Requested()            { m.requested.Inc() }
func (m *Metrics) Added()                { m.added.Inc() }
func (m *Metrics) Removed()              { m.removed.Inc() }
func (m *Metrics) Dropped(reason string) { m.dropped.WithLabelValues(reason).Inc() }
func (m *Metrics) Live(n int)            { m.live.Set(float64(n)) }

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
