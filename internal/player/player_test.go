package player

import (
	"testing"

	"github.com/warpzone/server/internal/arena"
)

func TestRegistryNewAssignsDistinctIDs(t *testing.T) {
	r := NewRegistry()
	a := r.New(KindStandard)
	b := r.New(KindStandard)
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %d and %d", a.ID, b.ID)
	}
}

func TestBindNameReturnsPreviousOccupant(t *testing.T) {
	r := NewRegistry()
	a := r.New(KindStandard)
	b := r.New(KindStandard)

	if prev := r.BindName(a, "ship1"); prev != nil {
		t.Fatalf("expected no previous occupant on first bind")
	}
	prev := r.BindName(b, "ship1")
	if prev != a {
		t.Fatalf("expected a to be returned as the previous occupant")
	}
	bound, ok := r.ByName("ship1")
	if !ok || bound != b {
		t.Fatalf("expected name to resolve to b after rebind")
	}
}

func TestRemoveClearsBothIndexesAndFreesKey(t *testing.T) {
	r := NewRegistry()
	p := r.New(KindStandard)
	r.BindName(p, "ship1")
	key := p.key

	r.Remove(p)

	if _, ok := r.ByID(p.ID); ok {
		t.Fatalf("expected player removed from by-id index")
	}
	if _, ok := r.ByName("ship1"); ok {
		t.Fatalf("expected player removed from by-name index")
	}
	if r.pool.Alive(key) {
		t.Fatalf("expected extra-data key to be freed on removal")
	}
}

func TestForEachCountableSkipsFakesAndExcluded(t *testing.T) {
	r := NewRegistry()
	counted := r.New(KindStandard)
	fake := r.New(KindFake)
	excluded := r.New(KindStandard)
	excluded.ExcludePop = true

	// All three sit in the same arena; only the standard, non-excluded
	// player counts.
	a := &arena.Arena{Name: "test"}
	counted.Arena = a
	fake.Arena = a
	excluded.Arena = a

	var seen int
	r.ForEachCountable(func(arenaName string, playingNotSpec bool) { seen++ })
	if seen != 1 {
		t.Fatalf("expected one callback (the standard, non-excluded player), got %d", seen)
	}
}
