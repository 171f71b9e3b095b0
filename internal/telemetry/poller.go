package telemetry

const pollIntervalMS = 5000

// ArenaLister is the subset of arena.Manager the poller needs — declared
// locally so this package does not import package arena, mirroring the
// narrow-interface pattern the rest of the collaborators (player.Mainloop,
// flag.Mainloop) already use.
type ArenaLister interface {
	Names() []string
	Population(name string) (total, playing int)
}

// Mainloop is the subset of package mainloop the poller needs.
type Mainloop interface {
	SetTimer(key string, initialMS, intervalMS int, fn func())
}

// Poller periodically copies arena population into the Prometheus gauges.
// It holds no state of its own beyond its collaborators — re-reading
// Arenas.Names()/Population() each tick is cheap enough at the 5s interval
// this runs at, and avoids it ever drifting from the arena manager's own
// bookkeeping.
type Poller struct {
	metrics *Metrics
	arenas  ArenaLister
	loop    Mainloop
}

func NewPoller(metrics *Metrics, arenas ArenaLister, loop Mainloop) *Poller {
	return &Poller{metrics: metrics, arenas: arenas, loop: loop}
}

// Start registers the periodic population-scan timer.
func (p *Poller) Start() {
	p.loop.SetTimer("telemetry-poll", pollIntervalMS, pollIntervalMS, p.tick)
}

func (p *Poller) tick() {
	for _, name := range p.arenas.Names() {
		total, playing := p.arenas.Population(name)
		p.metrics.Population.WithLabelValues(name).Set(float64(total))
		p.metrics.PlayingCount.WithLabelValues(name).Set(float64(playing))
	}
}

// RecordLifecycle bumps the arena lifecycle transition counter for status.
// No broker callback in this repository calls it.
func (p *Poller) RecordLifecycle(status string) {
	p.metrics.ArenaLifecycle.WithLabelValues(status).Inc()
}
