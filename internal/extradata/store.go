package extradata

// Removable is implemented by every typed Store so the Registry can clear
// an entity's data out of all stores at once, regardless of T.
type Removable interface {
	remove(k Key)
}

// Store is a generic typed slot store: one per registered data kind,
// indexed by entity Key. No reflection, no interface{} payloads.
type Store[T any] struct {
	reg  *Registry
	data map[Key]*T
}

// Allocate registers a new Store[T] on reg and returns it. Call once per
// module per data kind, typically during module load.
func Allocate[T any](reg *Registry) *Store[T] {
	s := &Store[T]{reg: reg, data: make(map[Key]*T, 64)}
	reg.add(s)
	return s
}

// Free removes the store from its Registry; subsequent Get calls on any
// key return (nil, false). Per invariant: absent on every entity once freed.
func (s *Store[T]) Free() {
	s.reg.removeStore(s)
	s.data = nil
}

func (s *Store[T]) Set(k Key, v *T) {
	if s.data == nil {
		return
	}
	s.data[k] = v
}

func (s *Store[T]) Get(k Key) (*T, bool) {
	if s.data == nil {
		return nil, false
	}
	v, ok := s.data[k]
	return v, ok
}

func (s *Store[T]) GetOrCreate(k Key) *T {
	if v, ok := s.Get(k); ok {
		return v
	}
	v := new(T)
	s.Set(k, v)
	return v
}

func (s *Store[T]) remove(k Key) {
	if s.data != nil {
		delete(s.data, k)
	}
}

// Registry tracks every Store allocated against one entity table (the
// process-wide player table, or a single arena's table) so the table owner
// can bulk-clear an entity's slots on free without knowing every T in use.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{stores: make([]Removable, 0, 16)}
}

func (r *Registry) add(s Removable) {
	r.stores = append(r.stores, s)
}

func (r *Registry) removeStore(s Removable) {
	for i, st := range r.stores {
		if st == s {
			r.stores = append(r.stores[:i], r.stores[i+1:]...)
			return
		}
	}
}

// RemoveAll clears k from every store registered against r. Called when a
// player leaves the process or an arena is destroyed.
func (r *Registry) RemoveAll(k Key) {
	for _, s := range r.stores {
		s.remove(k)
	}
}
