// Package metrics exposes a nomadserver.Server's state as Prometheus
// gauges and serves them over /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cljohnso/terracotta-platform/internal/nomadserver"
	"github.com/cljohnso/terracotta-platform/internal/wire"
)

// ServerMetrics mirrors one nomadserver.Server's Discover state as gauges
// (spec §4.7's restart-required flag, plus the version counters spec §4.2
// tracks).
type ServerMetrics struct {
	restartRequired prometheus.Gauge
	highestVersion  prometheus.Gauge
	currentVersion  prometheus.Gauge
	mode            prometheus.Gauge
	mutativeCount   prometheus.Gauge
}

// NewServerMetrics registers the gauges under namespace "nomad".
func NewServerMetrics() *ServerMetrics {
	const namespace = "nomad"
	return &ServerMetrics{
		restartRequired: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "restart_required",
			Help:      "1 if the node's upcoming configuration has diverged from its running configuration",
		}),
		highestVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "highest_version",
			Help:      "Highest configuration version this node has prepared or committed",
		}),
		currentVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_version",
			Help:      "Configuration version currently committed on this node",
		}),
		mode: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "0 if ACCEPTING, 1 if PREPARED",
		}),
		mutativeCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mutative_message_count",
			Help:      "Current mutative-message counter (m)",
		}),
	}
}

// Refresh pulls the server's current Discover state into the gauges.
// Callers poll this on an interval; Discover itself is cheap and lock-only.
func (m *ServerMetrics) Refresh(srv *nomadserver.Server) {
	resp := srv.Discover()
	m.highestVersion.Set(float64(resp.HighestVersion))
	m.currentVersion.Set(float64(resp.CurrentVersion))
	m.mutativeCount.Set(float64(resp.MutativeMessageCount))
	if resp.Mode == wire.ModePrepared {
		m.mode.Set(1)
	} else {
		m.mode.Set(0)
	}
}

// SetRestartRequired reflects dynamicconfig.Service.IsRestartRequired(),
// reported separately since it depends on runtime vs upcoming rather than
// anything Discover exposes.
func (m *ServerMetrics) SetRestartRequired(required bool) {
	if required {
		m.restartRequired.Set(1)
	} else {
		m.restartRequired.Set(0)
	}
}

// Handler returns the promhttp handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
