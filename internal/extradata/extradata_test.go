package extradata

import "testing"

type widgetData struct {
	Count int
}

func TestPoolKeyReuseBumpsGeneration(t *testing.T) {
	p := NewPool()
	k1 := p.Alloc()
	if !p.Alive(k1) {
		t.Fatalf("expected k1 alive")
	}
	p.Free(k1)
	if p.Alive(k1) {
		t.Fatalf("expected k1 dead after free")
	}
	k2 := p.Alloc()
	if k2.index() != k1.index() {
		t.Fatalf("expected index reuse, got %d vs %d", k2.index(), k1.index())
	}
	if k2.generation() == k1.generation() {
		t.Fatalf("expected generation bump on reuse")
	}
	if !p.Alive(k2) || p.Alive(k1) {
		t.Fatalf("stale key must not alias the reused index")
	}
}

func TestStoreFreeRemovesFromEveryEntity(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool()
	s := Allocate[widgetData](reg)

	k := pool.Alloc()
	s.Set(k, &widgetData{Count: 3})
	if v, ok := s.Get(k); !ok || v.Count != 3 {
		t.Fatalf("expected stored value, got %+v ok=%v", v, ok)
	}

	s.Free()
	if _, ok := s.Get(k); ok {
		t.Fatalf("expected Get to fail after Free")
	}
}

func TestRegistryRemoveAllClearsEveryStore(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool()
	a := Allocate[widgetData](reg)
	b := Allocate[int](reg)

	k := pool.Alloc()
	a.Set(k, &widgetData{Count: 1})
	b.Set(k, new(int))

	reg.RemoveAll(k)

	if _, ok := a.Get(k); ok {
		t.Fatalf("expected store a cleared")
	}
	if _, ok := b.Get(k); ok {
		t.Fatalf("expected store b cleared")
	}
}
