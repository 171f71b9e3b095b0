// Package telemetry is the ambient observability layer: a handful of
// Prometheus collectors for population and fan-out volume, served over a
// plain HTTP endpoint. This is not a gameplay module — the spec's
// Non-goals exclude a metrics/observability subsystem from the core's own
// responsibilities, but the ambient stack (logging, config, this) is
// carried regardless, the way the rest of the example pack instruments
// its long-running services.
//
// Grounded on the example pack's infrastructure/metrics.Metrics
// (R3E-Network/service_layer): the same CounterVec/GaugeVec collector
// struct plus a constructor that accepts a prometheus.Registerer, so
// tests can use their own registry instead of the global default one.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector this process exposes.
type Metrics struct {
	Population      *prometheus.GaugeVec
	PlayingCount     *prometheus.GaugeVec
	ArenaLifecycle   *prometheus.CounterVec
	FanoutPackets    *prometheus.CounterVec
	ModuleAttachErrs prometheus.Counter
}

// New registers every collector against registerer and returns the
// handle. Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests to avoid cross-test collisions.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		Population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zone_arena_population",
			Help: "Current total player count per arena.",
		}, []string{"arena"}),
		PlayingCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zone_arena_playing",
			Help: "Current non-spectator player count per arena.",
		}, []string{"arena"}),
		ArenaLifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zone_arena_lifecycle_total",
			Help: "Arena lifecycle transitions observed, by destination status.",
		}, []string{"status"}),
		FanoutPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zone_fanout_packets_total",
			Help: "Outbound position/weapon packets sent, by packet type.",
		}, []string{"type"}),
		ModuleAttachErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zone_module_attach_errors_total",
			Help: "Module attach failures during arena DoInit1.",
		}),
	}
	registerer.MustRegister(
		m.Population,
		m.PlayingCount,
		m.ArenaLifecycle,
		m.FanoutPackets,
		m.ModuleAttachErrs,
	)
	return m
}
