// Package player implements the process-wide player registry (spec C4)
// and the player connection-lifecycle state machine (spec C6). Grounded on
// the teacher's core/ecs.World entity table (generational handles, RWMutex-
// guarded map) generalized from game entities to network sessions, and on
// core/system.Runner's per-tick scan-then-process-after-unlock pattern,
// carried over into ticker-driven handler dispatch instead of a fixed
// system list.
package player

import (
	"sync"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/extradata"
)

// Player is one connected session: a standard game client, a chat-only
// client, or a fake (bot) player (§3).
type Player struct {
	ID   int64
	Kind Kind
	Name string
	Squad string

	mu       sync.Mutex
	Status   Status
	Arena    *arena.Arena
	NewArena string // requested arena name, consumed on the next sync step

	Ship int
	Freq int

	AttachedTo  int64 // 0 if not attached to another player
	SpecTarget  int64 // 0 if not spectating a specific player
	ExcludePop  bool  // excluded from population counts (spectator mode etc)

	// Position fan-out cache (C7): last accepted position and bookkeeping
	// the fan-out engine needs across packets.
	LastX, LastY        int16
	LastTime             uint32
	LastRegionCheckMS     int64
	SentWeaponPacket      bool
	DeathsWithoutFiring   int
	Antiwarp              bool
	InSafezone            bool

	// Recorded spawn location (§4.6 step 5): consumed and cleared the next
	// time this player enters an arena, to warp them there instead of the
	// arena's default spawn point.
	PendingSpawnX, PendingSpawnY int16
	HasPendingSpawn              bool

	ReplacedBy *Player // set on the old session when a duplicate login wins

	// Decay counters for the freq manager's ship/freq-change rate limit
	// (§ Send-ship/freq enforcement). Halved every 10s; an attempt bumps
	// the counter by one regardless of whether it is allowed.
	shipChanges     float64
	lastShipDecayMS int64
	freqChanges     float64
	lastFreqDecayMS int64

	pendingAuth *AuthRequest
	leavingZone bool
	replacement *Player // new session waiting in WaitAuth for this one to finish leaving

	extra *extradata.Registry
	key   extradata.Key
}

func (p *Player) getStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Status
}

// CurrentStatus returns p's current lifecycle status (§4.5), for modules
// outside package player that need to gate behavior on it (e.g. the
// carry-flag engine's TouchFlag requiring Playing).
func (p *Player) CurrentStatus() Status {
	return p.getStatus()
}

func (p *Player) setStatus(s Status) {
	p.mu.Lock()
	p.Status = s
	p.mu.Unlock()
}

// SetPendingSpawn records a spawn location to warp p to on its next arena
// entry (§4.6 step 5). Callers (e.g. a death/respawn module) are
// responsible for clearing it again if p never actually re-enters.
func (p *Player) SetPendingSpawn(x, y int16) {
	p.mu.Lock()
	p.PendingSpawnX, p.PendingSpawnY = x, y
	p.HasPendingSpawn = true
	p.mu.Unlock()
}

// ConsumePendingSpawn returns p's recorded spawn location and clears it,
// reporting ok=false if none was recorded.
func (p *Player) ConsumePendingSpawn() (x, y int16, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.HasPendingSpawn {
		return 0, 0, false
	}
	p.HasPendingSpawn = false
	return p.PendingSpawnX, p.PendingSpawnY, true
}

// ExtraData returns the per-player generic module storage registry so
// modules can allocate typed slots keyed to this player's lifetime.
func (p *Player) ExtraData() *extradata.Registry { return p.extra }

// CurrentArena returns p's current arena, or nil if it is not in one.
func (p *Player) CurrentArena() *arena.Arena {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Arena
}

// Registry is the process-wide player table (C4): concurrent lookup by id
// and by name, with a read/write lock so the 100ms status scan (§4.5) can
// take a snapshot without holding the lock across handler dispatch.
type Registry struct {
	mu      sync.RWMutex
	byID    map[int64]*Player
	byName  map[string]*Player
	nextID  int64
	pool    *extradata.Pool
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[int64]*Player),
		byName: make(map[string]*Player),
		pool:   extradata.NewPool(),
	}
}

// New allocates a fresh Player and adds it to the table as Connected. name
// may be empty for a player who has not logged in yet (e.g. an in-progress
// handshake); it is filled in once auth completes.
func (r *Registry) New(kind Kind) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p := &Player{
		ID:     r.nextID,
		Kind:   kind,
		Status: Connected,
		extra:  extradata.NewRegistry(),
		key:    r.pool.Alloc(),
	}
	r.byID[p.ID] = p
	return p
}

// Remove deletes p from the table, frees its extra-data key for reuse, and
// clears any process-wide store slots keyed to it. Callers must have
// already driven p to TimeWait and performed any final persistence sync.
func (r *Registry) Remove(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, p.ID)
	if p.Name != "" && r.byName[p.Name] == p {
		delete(r.byName, p.Name)
	}
	r.pool.Free(p.key)
}

// BindName associates name with p in the by-name index, returning the
// previous occupant (if any) so the caller can run the duplicate-login
// replacement protocol (§4.5, S2).
func (r *Registry) BindName(p *Player, name string) (previous *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous = r.byName[name]
	p.Name = name
	r.byName[name] = p
	return previous
}

func (r *Registry) ByID(id int64) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

func (r *Registry) ByName(name string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// All returns a snapshot slice of every player currently in the table.
func (r *Registry) All() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out
}

// ForEachCountable satisfies arena.PopulationSnapshotter: it calls fn for
// every player that counts toward population, excluding fakes and players
// with the exclude-population flag set.
func (r *Registry) ForEachCountable(fn func(arenaName string, playingNotSpec bool)) {
	r.mu.RLock()
	snap := make([]*Player, 0, len(r.byID))
	for _, p := range r.byID {
		snap = append(snap, p)
	}
	r.mu.RUnlock()

	for _, p := range snap {
		if p.Kind == KindFake || p.ExcludePop {
			continue
		}
		p.mu.Lock()
		a := p.Arena
		ship := p.Ship
		p.mu.Unlock()
		if a == nil {
			continue
		}
		fn(a.Name, ship != shipSpectator)
	}
}

// HasFakePlayer satisfies arena.FakePlayerChecker.
func (r *Registry) HasFakePlayer(a *arena.Arena) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		p.mu.Lock()
		match := p.Kind == KindFake && p.Arena == a
		p.mu.Unlock()
		if match {
			return true
		}
	}
	return false
}

const shipSpectator = 8
