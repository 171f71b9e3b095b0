package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeArenaLister struct {
	names map[string][2]int // name -> {total, playing}
}

func (f *fakeArenaLister) Names() []string {
	names := make([]string, 0, len(f.names))
	for n := range f.names {
		names = append(names, n)
	}
	return names
}

func (f *fakeArenaLister) Population(name string) (int, int) {
	v := f.names[name]
	return v[0], v[1]
}

type fakeMainloop struct {
	timers map[string]func()
}

func (f *fakeMainloop) SetTimer(key string, initialMS, intervalMS int, fn func()) {
	if f.timers == nil {
		f.timers = make(map[string]func())
	}
	f.timers[key] = fn
}

func TestPollerTickUpdatesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	arenas := &fakeArenaLister{names: map[string][2]int{
		"turf": {10, 7},
	}}
	loop := &fakeMainloop{}
	p := NewPoller(m, arenas, loop)

	p.tick()

	if got := testutil.ToFloat64(m.Population.WithLabelValues("turf")); got != 10 {
		t.Errorf("Population[turf] = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.PlayingCount.WithLabelValues("turf")); got != 7 {
		t.Errorf("PlayingCount[turf] = %v, want 7", got)
	}
}

func TestPollerStartRegistersTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	loop := &fakeMainloop{}
	p := NewPoller(m, &fakeArenaLister{names: map[string][2]int{}}, loop)

	p.Start()

	fn, ok := loop.timers["telemetry-poll"]
	if !ok {
		t.Fatal("Start did not register the telemetry-poll timer")
	}
	// The registered function should be safe to invoke directly (it's p.tick).
	fn()
}

func TestRecordLifecycleIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	loop := &fakeMainloop{}
	p := NewPoller(m, &fakeArenaLister{names: map[string][2]int{}}, loop)

	p.RecordLifecycle("Running")
	p.RecordLifecycle("Running")
	p.RecordLifecycle("Closing")

	if got := testutil.ToFloat64(m.ArenaLifecycle.WithLabelValues("Running")); got != 2 {
		t.Errorf("ArenaLifecycle[Running] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ArenaLifecycle.WithLabelValues("Closing")); got != 1 {
		t.Errorf("ArenaLifecycle[Closing] = %v, want 1", got)
	}
}
