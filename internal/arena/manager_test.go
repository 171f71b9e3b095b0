package arena

import (
	"testing"

	"github.com/warpzone/server/internal/broker"
	"go.uber.org/zap"
)

// syncLoop runs queued work immediately and inline, recursively, so tests
// can assert on state without a real mainloop goroutine.
type syncLoop struct{}

func (syncLoop) QueueMainWork(fn func())                               { fn() }
func (syncLoop) SetTimer(key string, initialMS, intervalMS int, fn func()) {}

type fakeConfig struct {
	str map[string]string
	ints map[string]int
	failOpen bool
	closed bool
}

func (c *fakeConfig) GetStr(section, key, def string) string {
	if v, ok := c.str[section+"."+key]; ok {
		return v
	}
	return def
}
func (c *fakeConfig) GetInt(section, key string, def int) int {
	if v, ok := c.ints[section+"."+key]; ok {
		return v
	}
	return def
}
func (c *fakeConfig) Close() { c.closed = true }

type fakeOpener struct {
	failOpen bool
	attachModules string
	opened []string
}

func (o *fakeOpener) Open(name, base string) (ConfigHandle, error) {
	o.opened = append(o.opened, name)
	if o.failOpen {
		return nil, errOpenFailed
	}
	return &fakeConfig{str: map[string]string{"Modules.AttachModules": o.attachModules}}, nil
}

var errOpenFailed = &openErr{}

type openErr struct{}

func (*openErr) Error() string { return "open failed" }

type fakeMods struct {
	attachCalls []string
	attachFail  map[string]bool
	detachOK    bool
}

func (m *fakeMods) AttachModuleAsync(name string, a *Arena) error {
	m.attachCalls = append(m.attachCalls, name)
	if m.attachFail[name] {
		return errOpenFailed
	}
	return nil
}
func (m *fakeMods) DetachAllFromArenaAsync(a *Arena) bool { return m.detachOK }

func newTestManager(opener *fakeOpener, mods *fakeMods) *Manager {
	log := zap.NewNop()
	root := broker.NewRoot()
	return NewManager(log, root, syncLoop{}, opener, mods, nil)
}

func TestCompleteGoCreatesArenaInDoInit0ThenAdvances(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: true}
	m := newTestManager(opener, mods)

	a := m.CompleteGo(1, "Test#1", nil)
	if a.Name != "testx1" {
		t.Fatalf("got name %q, want testx1", a.Name)
	}
	// syncLoop runs every posted step inline, so by the time CompleteGo
	// returns the arena has already run DoInit0 -> WaitHolds0 -> DoInit1 ->
	// WaitHolds1, and DoInit2 has no persistence collaborator so it goes
	// straight to Running.
	if a.Status != Running {
		t.Fatalf("got status %v, want Running", a.Status)
	}
}

func TestCompleteGoEmptyNameFallsBackToZero(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: true}
	m := newTestManager(opener, mods)

	a := m.CompleteGo(1, "!!!", nil)
	if a.Name != "0" {
		t.Fatalf("got name %q, want fallback \"0\"", a.Name)
	}
}

func TestDoInit0FailureRemovesArena(t *testing.T) {
	opener := &fakeOpener{failOpen: true}
	mods := &fakeMods{detachOK: true}
	// DoInit0's failure path takes the table lock in removeArena, so it must
	// run after CompleteGo has released that lock, as on the real mainloop;
	// the inline syncLoop would run it while CompleteGo still holds it.
	var pending []func()
	m := NewManager(zap.NewNop(), broker.NewRoot(), controlledLoop{pending: &pending}, opener, mods, nil)

	m.CompleteGo(1, "test", nil)
	drain(&pending)
	if _, ok := m.FindByName("test"); ok {
		t.Fatalf("expected failed arena to be removed from the table")
	}
}

func TestHoldsGateWaitHoldsTransitions(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: true}
	log := zap.NewNop()
	root := broker.NewRoot()
	var pending []func()
	ctrl := controlledLoop{pending: &pending}
	m := NewManager(log, root, ctrl, opener, mods, nil)

	// A module holds the arena in WaitHolds0 by calling AddHold from its
	// PreCreate subscriber, which runs synchronously before the zero-check
	// is even queued.
	var held *Arena
	broker.RegisterCallback(root, func(ev PreCreateEvent) {
		held = ev.Arena
		m.AddHold(ev.Arena)
	})

	a := m.CompleteGo(1, "test", nil)
	drain(&pending)

	if held != a {
		t.Fatalf("expected PreCreate to fire for the new arena")
	}
	if a.Status != WaitHolds0 {
		t.Fatalf("got %v, want WaitHolds0 (held open)", a.Status)
	}

	m.RemoveHold(a) // holds back to 0, should post advance
	drain(&pending)

	if a.Status == WaitHolds0 {
		t.Fatalf("expected arena to progress past WaitHolds0 once the hold released")
	}
}

type controlledLoop struct {
	pending *[]func()
}

func (c controlledLoop) QueueMainWork(fn func())                               { *c.pending = append(*c.pending, fn) }
func (c controlledLoop) SetTimer(key string, initialMS, intervalMS int, fn func()) {}

func drain(pending *[]func()) {
	for len(*pending) > 0 {
		fn := (*pending)[0]
		*pending = (*pending)[1:]
		fn()
	}
}

func TestDetachFailureRenamesToKeepAliveGUID(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: false}
	m := newTestManager(opener, mods)

	a := m.CompleteGo(1, "test", nil)
	m.SetStatus(a, DoDestroy2)

	if !a.KeepAlive {
		t.Fatalf("expected arena to become keep-alive after detach failure")
	}
	if a.Status != Running {
		t.Fatalf("expected arena to land back in Running, got %v", a.Status)
	}
	if a.Name == "test" {
		t.Fatalf("expected arena to be renamed off of its old name")
	}
	if _, ok := m.FindByName("test"); ok {
		t.Fatalf("old name should no longer resolve")
	}
}

func TestRecycleArenaRequiresRunning(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: true}
	m := newTestManager(opener, mods)

	a := m.CompleteGo(1, "test", nil)
	a.Status = DoInit0 // force out of Running

	res := m.RecycleArena(a, nil)
	if res.OK {
		t.Fatalf("expected recycle to fail outside Running")
	}
}

func TestRecycleArenaSetsClosingAndResurrect(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: true}
	m := newTestManager(opener, mods)

	a := m.CompleteGo(1, "test", nil)
	m.AddPlayer(a, 42)

	res := m.RecycleArena(a, nil)
	if !res.OK {
		t.Fatalf("expected recycle to succeed")
	}
	if len(res.Players) != 1 || res.Players[0] != 42 {
		t.Fatalf("expected player 42 in result, got %v", res.Players)
	}
	if a.Status != Closing || !a.Resurrect {
		t.Fatalf("expected Closing+Resurrect, got status=%v resurrect=%v", a.Status, a.Resurrect)
	}
}

func TestSyncPermanentArenasCreatesAndRetiresKeepAlive(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: true}
	m := newTestManager(opener, mods)

	m.SyncPermanentArenas("alpha, beta")
	a, ok := m.FindByName("alpha")
	if !ok || !a.KeepAlive {
		t.Fatalf("expected alpha to exist and be keep-alive")
	}
	b, ok := m.FindByName("beta")
	if !ok || !b.KeepAlive {
		t.Fatalf("expected beta to exist and be keep-alive")
	}

	m.SyncPermanentArenas("alpha")
	if b.KeepAlive {
		t.Fatalf("expected beta to lose keep-alive once dropped from the list")
	}
}

func TestReapSkipsArenasWithPlayersOrTargeted(t *testing.T) {
	opener := &fakeOpener{}
	mods := &fakeMods{detachOK: true}
	m := newTestManager(opener, mods)

	withPlayer := m.CompleteGo(1, "withplayer", nil)
	m.AddPlayer(withPlayer, 1)
	targeted := m.CompleteGo(2, "targeted", nil)
	empty := m.CompleteGo(3, "empty", nil)

	m.Reap(map[string]struct{}{"targeted": {}})

	if withPlayer.Status != Running {
		t.Fatalf("expected arena with a player to stay Running, got %v", withPlayer.Status)
	}
	if targeted.Status != Running {
		t.Fatalf("expected targeted arena to stay Running, got %v", targeted.Status)
	}
	if _, ok := m.FindByName("empty"); ok {
		t.Fatalf("expected empty, untargeted arena to be reaped and removed, still found %v", empty.Status)
	}
}
