package player

import (
	"testing"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/broker"
	"go.uber.org/zap"
)

func TestDefaultFreqManagerBalancesNewEntrantToLighterFreq(t *testing.T) {
	log := zap.NewNop()
	root := broker.NewRoot()
	am := arena.NewManager(log, root, syncLoop{}, fakeOpener{}, fakeMods{}, nil)
	reg := NewRegistry()
	fm := NewDefaultFreqManager(reg)

	a := am.CompleteGo(1, "test", nil)

	existing := reg.New(KindStandard)
	existing.Arena = a
	existing.Freq = 0

	newcomer := reg.New(KindStandard)
	newcomer.Arena = a

	freq, ship, ok := fm.InitialFreq(a, newcomer)
	if !ok {
		t.Fatal("expected InitialFreq to report ok")
	}
	if freq != 1 {
		t.Errorf("freq = %d, want 1 (freq 0 already has a player)", freq)
	}
	if ship != shipSpectator {
		t.Errorf("ship = %d, want spectator (%d)", ship, shipSpectator)
	}
}

func TestDefaultFreqManagerIgnoresSelfWhenCounting(t *testing.T) {
	log := zap.NewNop()
	root := broker.NewRoot()
	am := arena.NewManager(log, root, syncLoop{}, fakeOpener{}, fakeMods{}, nil)
	reg := NewRegistry()
	fm := NewDefaultFreqManager(reg)

	a := am.CompleteGo(1, "test", nil)
	p := reg.New(KindStandard)
	p.Arena = a
	p.Freq = 0

	// p is already counted on freq 0; re-evaluating p itself must not
	// count p against its own candidacy.
	freq, _, ok := fm.InitialFreq(a, p)
	if !ok || freq != 0 {
		t.Errorf("freq = %d, ok = %v, want freq 0 (p excluded from its own count)", freq, ok)
	}
}

type fakeChangeConfig struct{ limit int }

func (c fakeChangeConfig) GetStr(section, key, def string) string { return def }
func (c fakeChangeConfig) GetInt(section, key string, def int) int {
	if section == "General" && key == "ShipChangeLimit" {
		return c.limit
	}
	return def
}
func (c fakeChangeConfig) Close() {}

func TestDecayAllowLimitsRapidChanges(t *testing.T) {
	root := broker.NewRoot()
	log := zap.NewNop()
	am := arena.NewManager(log, root, syncLoop{}, fakeOpener{}, fakeMods{}, nil)
	a := am.CompleteGo(1, "test", nil)
	a.Config = fakeChangeConfig{limit: 2}

	reg := NewRegistry()
	fm := NewDefaultFreqManager(reg)
	p := reg.New(KindStandard)
	p.Arena = a

	if !fm.CanChangeShip(p) {
		t.Error("1st change should be allowed")
	}
	if !fm.CanChangeShip(p) {
		t.Error("2nd change should be allowed")
	}
	if fm.CanChangeShip(p) {
		t.Error("3rd change within the same instant should be rejected (limit is 2)")
	}
}

func TestDecayAllowUnlimitedWhenNoConfig(t *testing.T) {
	reg := NewRegistry()
	fm := NewDefaultFreqManager(reg)
	p := reg.New(KindStandard)
	// p.Arena is nil: changeLimit falls back to 0 (unlimited).
	for i := 0; i < 50; i++ {
		if !fm.CanChangeFreq(p) {
			t.Fatalf("change %d rejected despite no arena/config bound", i)
		}
	}
}

type fakeScriptEngine struct {
	freq, ship int
	ok         bool
	hasGlobal  bool
}

func (f fakeScriptEngine) CallFreqHook(name string, playerID int64, arenaName string) (int, int, bool) {
	return f.freq, f.ship, f.ok
}
func (f fakeScriptEngine) HasGlobal(name string) bool { return f.hasGlobal }

func TestScriptFreqManagerFallsBackWhenHookUndefined(t *testing.T) {
	reg := NewRegistry()
	fallback := NewDefaultFreqManager(reg)
	sm := NewScriptFreqManager(fakeScriptEngine{hasGlobal: false}, fallback)

	root := broker.NewRoot()
	log := zap.NewNop()
	am := arena.NewManager(log, root, syncLoop{}, fakeOpener{}, fakeMods{}, nil)
	a := am.CompleteGo(1, "test", nil)
	p := reg.New(KindStandard)

	freq, ship, ok := sm.InitialFreq(a, p)
	if !ok || freq != 0 || ship != shipSpectator {
		t.Errorf("got (%d, %d, %v), want the default manager's result", freq, ship, ok)
	}
}

func TestScriptFreqManagerUsesHookResultWhenDefined(t *testing.T) {
	reg := NewRegistry()
	fallback := NewDefaultFreqManager(reg)
	sm := NewScriptFreqManager(fakeScriptEngine{freq: 7, ship: 2, ok: true, hasGlobal: true}, fallback)

	root := broker.NewRoot()
	log := zap.NewNop()
	am := arena.NewManager(log, root, syncLoop{}, fakeOpener{}, fakeMods{}, nil)
	a := am.CompleteGo(1, "test", nil)
	p := reg.New(KindStandard)

	freq, ship, ok := sm.InitialFreq(a, p)
	if !ok || freq != 7 || ship != 2 {
		t.Errorf("got (%d, %d, %v), want (7, 2, true) from the script hook", freq, ship, ok)
	}
}
