package arena

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/warpzone/server/internal/broker"
	"github.com/warpzone/server/internal/extradata"
	"go.uber.org/zap"
)

// ConfigOpener is the (out-of-scope) configuration-file store's contract
// for opening an arena's config with base-name/global fallback.
type ConfigOpener interface {
	Open(arenaName, baseName string) (ConfigHandle, error)
}

// ModuleAttacher is the subset of the module manager (C2) the arena state
// machine needs during DoInit1/DoDestroy2. Declared here (rather than
// importing package moduleman) so arena and moduleman do not import each
// other; moduleman.Manager satisfies this interface structurally.
type ModuleAttacher interface {
	AttachModuleAsync(name string, a *Arena) error
	DetachAllFromArenaAsync(a *Arena) bool
}

// Persistence is the (out-of-scope) persistence collaborator's contract for
// arena-scoped load/save, completed asynchronously via SyncDone.
type Persistence interface {
	// RequestArenaLoad asynchronously loads persisted arena data; done is
	// invoked (possibly off the mainloop — the caller posts it back) when
	// the load completes.
	RequestArenaLoad(a *Arena, done func())
	RequestArenaSave(a *Arena, done func())
}

// PlacementAdvisor lets a module redirect a failed or empty arena-name
// resolution (§4.4 CompleteGo, §4.4 DoInit0 failure path).
type PlacementAdvisor interface {
	PlaceArena(playerID int64, requested string) (arenaName string, ok bool)
}

// Mainloop is the subset of package mainloop the arena manager posts work
// and timers to (C3). Declared locally to avoid an import cycle, since
// package mainloop does not need to know about arenas.
type Mainloop interface {
	QueueMainWork(fn func())
	SetTimer(key string, initialMS, intervalMS int, fn func())
}

// Manager is the arena table (C5): creation, config load, module
// attachment, persistence sync, destruction, recycling, known/permanent
// arena indexes, reaping, and population summary.
type Manager struct {
	log    *zap.Logger
	root   *broker.Scope
	loop   Mainloop
	cfgs   ConfigOpener
	mods   ModuleAttacher
	persist Persistence

	mu      sync.RWMutex
	byName  map[string]*Arena
	pool    *extradata.Pool

	knownMu sync.RWMutex
	known   map[string]struct{} // lowercase directory names with an arena.conf

	permanent []string // Arenas:PermanentArenas, as configured

	popMu   sync.Mutex
	popSeen map[string]popCount

	fallbackArena string // "0" unless overridden
}

type popCount struct {
	Total   int
	Playing int
}

func NewManager(log *zap.Logger, root *broker.Scope, loop Mainloop, cfgs ConfigOpener, mods ModuleAttacher, persist Persistence) *Manager {
	return &Manager{
		log:           log,
		root:          root,
		loop:          loop,
		cfgs:          cfgs,
		mods:          mods,
		persist:       persist,
		byName:        make(map[string]*Arena),
		pool:          extradata.NewPool(),
		known:         make(map[string]struct{}),
		popSeen:       make(map[string]popCount),
		fallbackArena: "0",
	}
}

// FindByName returns the arena named name (already sanitized), if present.
func (m *Manager) FindByName(name string) (*Arena, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byName[name]
	return a, ok
}

// All returns a snapshot slice of every arena currently in the table.
func (m *Manager) All() []*Arena {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Arena, 0, len(m.byName))
	for _, a := range m.byName {
		out = append(out, a)
	}
	return out
}

// Names returns every currently-live arena's name, for collaborators (the
// telemetry poller) that only need the population scan key, not the full
// *Arena.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byName))
	for name := range m.byName {
		out = append(out, name)
	}
	return out
}

// createLocked allocates a new non-permanent arena in DoInit0 and schedules
// its init handler. Caller must hold m.mu (write).
func (m *Manager) createLocked(name string) *Arena {
	key := m.pool.Alloc()
	scope := m.root.NewChild()
	a := newArena(name, scope, key)
	m.byName[name] = a
	m.loop.QueueMainWork(func() { m.handleDoInit0(a) })
	return a
}

// CompleteGo resolves a requested arena name for playerID (§4.4), finds an
// existing arena in any live state or creates a new one in DoInit0, and
// returns it. It does not advance the player's own status — the caller
// (player state machine, C6) does that once the arena reaches Running.
func (m *Manager) CompleteGo(playerID int64, requested string, advisor PlacementAdvisor) *Arena {
	name := SanitizeName(requested)
	if name == "" {
		if advisor != nil {
			if placed, ok := advisor.PlaceArena(playerID, requested); ok {
				name = SanitizeName(placed)
			}
		}
	}
	if name == "" {
		name = m.fallbackArena
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.byName[name]; ok {
		if a.Status.InDestroyHalf() {
			a.Resurrect = true
		}
		return a
	}
	return m.createLocked(name)
}

// ── DoInit0 ──────────────────────────────────────────────────────────────

func (m *Manager) handleDoInit0(a *Arena) {
	cfg, err := m.cfgs.Open(a.Name, a.BaseName)
	if err != nil {
		m.log.Warn("could not open arena.conf, removing arena", zap.String("arena", a.Name), zap.Error(err))
		m.rerouteEnterersToFallback(a)
		m.removeArena(a)
		return
	}
	a.Config = cfg
	a.SpecFreq = cfg.GetInt("Team", "SpectatorFrequency", 0)
	m.enterWaitHolds(a, WaitHolds0, func() {
		broker.Fire(a.Scope, PreCreateEvent{Arena: a})
	})
}

// rerouteEnterersToFallback fires ArenaCreateFailedEvent on a's scope. It
// does not move the players who were trying to enter a to a fallback
// arena or disconnect them, and no subscriber in this repository does so
// either.
func (m *Manager) rerouteEnterersToFallback(a *Arena) {
	broker.Fire(a.Scope, ArenaCreateFailedEvent{Arena: a})
}

func (m *Manager) removeArena(a *Arena) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, a.Name)
	m.pool.Free(a.key)
}

// ── Holds ────────────────────────────────────────────────────────────────

// AddHold increments a's hold counter. Only valid in WaitHolds0/1/2;
// misuse is logged and ignored per §4.4.
func (m *Manager) AddHold(a *Arena) {
	if !inWaitHolds(a.Status) {
		m.log.Warn("add_hold called outside a WaitHolds status", zap.String("arena", a.Name), zap.String("status", a.Status.String()))
		return
	}
	a.holds++
}

// RemoveHold decrements a's hold counter; reaching zero immediately posts a
// state-advance. Only valid in WaitHolds0/1/2.
func (m *Manager) RemoveHold(a *Arena) {
	if !inWaitHolds(a.Status) {
		m.log.Warn("remove_hold called outside a WaitHolds status", zap.String("arena", a.Name), zap.String("status", a.Status.String()))
		return
	}
	if a.holds <= 0 {
		m.log.Warn("remove_hold called while holds was already zero", zap.String("arena", a.Name))
		return
	}
	a.holds--
	if a.holds == 0 {
		m.loop.QueueMainWork(func() { m.advanceFromWaitHolds(a) })
	}
}

func inWaitHolds(s Status) bool {
	return s == WaitHolds0 || s == WaitHolds1 || s == WaitHolds2
}

func (m *Manager) advanceFromWaitHolds(a *Arena) {
	switch a.Status {
	case WaitHolds0:
		m.SetStatus(a, DoInit1)
	case WaitHolds1:
		m.SetStatus(a, DoInit2)
	case WaitHolds2:
		m.SetStatus(a, DoDestroy2)
	}
}

// enterWaitHolds sets a.Status directly (not via SetStatus, so the
// transition does not itself re-dispatch), fires the associated callback
// synchronously so a subscriber has a chance to AddHold before the
// zero-check below is even queued, then queues the zero-check as a
// separate mainloop work item. This ordering is what makes a hold
// registered from inside the callback actually gate the transition.
func (m *Manager) enterWaitHolds(a *Arena, s Status, fire func()) {
	a.Status = s
	if fire != nil {
		fire()
	}
	m.loop.QueueMainWork(func() { m.maybeAdvanceWaitHolds(a) })
}

func (m *Manager) maybeAdvanceWaitHolds(a *Arena) {
	if !inWaitHolds(a.Status) || a.holds != 0 {
		return
	}
	m.advanceFromWaitHolds(a)
}

// ── SetStatus: the single dispatch point from "write the new status" to
// "run its handler on this tick" (§2: "writing a new status value; C3
// picks them up on its next tick"). ─────────────────────────────────────

func (m *Manager) SetStatus(a *Arena, s Status) {
	a.Status = s
	m.loop.QueueMainWork(func() { m.dispatch(a) })
}

func (m *Manager) dispatch(a *Arena) {
	switch a.Status {
	case DoInit1:
		m.handleDoInit1(a)
	case DoInit2:
		m.handleDoInit2(a)
	case DoWriteData:
		m.handleDoWriteData(a)
	case DoDestroy1:
		m.handleDoDestroy1(a)
	case DoDestroy2:
		m.handleDoDestroy2(a)
	}
}

func (m *Manager) handleDoInit1(a *Arena) {
	list := a.Config.GetStr("Modules", "AttachModules", "")
	for _, name := range splitAttachList(list) {
		if err := m.mods.AttachModuleAsync(name, a); err != nil {
			m.log.Error("module attach failed", zap.String("arena", a.Name), zap.String("module", name), zap.Error(err))
		}
	}
	m.enterWaitHolds(a, WaitHolds1, func() {
		broker.Fire(a.Scope, CreateEvent{Arena: a})
	})
}

func splitAttachList(value string) []string {
	isDelim := func(r byte) bool { return r == ' ' || r == '\t' || r == ':' || r == ';' }
	var out []string
	start := -1
	for i := 0; i < len(value); i++ {
		if isDelim(value[i]) {
			if start >= 0 {
				out = append(out, value[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, value[start:])
	}
	return out
}

func (m *Manager) handleDoInit2(a *Arena) {
	if m.persist == nil {
		m.SetStatus(a, Running)
		return
	}
	a.Status = WaitSync1
	m.persist.RequestArenaLoad(a, func() {
		m.loop.QueueMainWork(func() { m.SetStatus(a, Running) })
	})
}

func (m *Manager) handleDoWriteData(a *Arena) {
	if a.playerCount() > 0 {
		a.Status = Running
		return
	}
	if m.persist == nil {
		m.SetStatus(a, DoDestroy1)
		return
	}
	a.Status = WaitSync2
	m.persist.RequestArenaSave(a, func() {
		m.loop.QueueMainWork(func() { m.SetStatus(a, DoDestroy1) })
	})
}

func (m *Manager) handleDoDestroy1(a *Arena) {
	m.enterWaitHolds(a, WaitHolds2, func() {
		broker.Fire(a.Scope, DestroyEvent{Arena: a})
	})
}

func (m *Manager) handleDoDestroy2(a *Arena) {
	ok := m.mods.DetachAllFromArenaAsync(a)
	if !ok {
		m.resurrectAsGUID(a)
		return
	}
	a.Config.Close()
	broker.Fire(a.Scope, PostDestroyEvent{Arena: a})
	if a.Resurrect {
		a.Resurrect = false
		a.extra = extradata.NewRegistry()
		m.SetStatus(a, DoInit0)
		return
	}
	m.removeArena(a)
}

// resurrectAsGUID implements the DoDestroy2 detach-failure path: rename the
// arena to a fresh GUID, mark it keep-alive and Running, and log a warning
// that the server is no longer fully consistent (§4.4, §7 fatal-to-arena).
func (m *Manager) resurrectAsGUID(a *Arena) {
	m.mu.Lock()
	delete(m.byName, a.Name)
	newName := "guid-" + newGUID()
	a.Name = newName
	a.BaseName = BaseName(newName)
	m.byName[newName] = a
	m.mu.Unlock()

	a.KeepAlive = true
	a.Status = Running
	m.log.Error("arena module detach failed, server state is now inconsistent; arena renamed and marked permanent",
		zap.String("new_name", newName))
}

// ── Recycle ──────────────────────────────────────────────────────────────

// FakePlayerChecker lets Recycle ask whether any fake player occupies a,
// without importing package player (which depends on arena).
type FakePlayerChecker interface {
	HasFakePlayer(a *Arena) bool
}

// RecycleResult reports the recycle outcome to the caller so it can perform
// the per-player side effects (send WhoAmI, reinitiate each player's leave,
// set new_arena) that §4.4 assigns to the arena manager but which require
// player-table access the arena package does not have.
type RecycleResult struct {
	OK      bool
	Players []int64
}

// RecycleArena is valid only in Running and fails if any fake player is in
// the arena. On success it sets Closing + Resurrect=true and returns the
// player ids the caller must route through "who am I" + local leave +
// new_arena=a.
func (m *Manager) RecycleArena(a *Arena, fakes FakePlayerChecker) RecycleResult {
	if a.Status != Running {
		return RecycleResult{OK: false}
	}
	if fakes != nil && fakes.HasFakePlayer(a) {
		return RecycleResult{OK: false}
	}

	m.mu.RLock()
	ids := make([]int64, 0, len(a.players))
	for id := range a.players {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	a.Resurrect = true
	m.SetStatus(a, Closing)
	return RecycleResult{OK: true, Players: ids}
}

// ── Player membership (tracked here so reap/population can scan without
// reaching into the player package) ──────────────────────────────────────

func (m *Manager) AddPlayer(a *Arena, playerID int64) {
	m.mu.Lock()
	a.players[playerID] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) RemovePlayer(a *Arena, playerID int64) {
	m.mu.Lock()
	delete(a.players, playerID)
	m.mu.Unlock()
}

// ── Reaping (§4.4: periodic 1.7s timer) ──────────────────────────────────

const ReapIntervalMS = 1700

// Reap marks every Running/Closing arena for reaping, then — given the set
// of arena names currently targeted by some player's new_arena field (the
// caller supplies this since only the player table knows it) — clears the
// mark on any arena with a player in it or targeted, and on keep-alive arenas
// that are not Closing. Remaining reap-marked arenas transition to
// DoWriteData.
func (m *Manager) Reap(targetedByNewArena map[string]struct{}) {
	for _, a := range m.All() {
		if a.Status != Running && a.Status != Closing {
			continue
		}
		reap := true
		if a.playerCount() > 0 {
			reap = false
		}
		if _, targeted := targetedByNewArena[a.Name]; targeted {
			reap = false
		}
		if a.KeepAlive && a.Status != Closing {
			reap = false
		}
		if reap {
			m.SetStatus(a, DoWriteData)
		}
	}
}

// ── Permanent arenas (§4.4) ───────────────────────────────────────────────

// SyncPermanentArenas reads the comma/space/tab/newline-delimited list,
// creates missing arenas as keep-alive, and removes keep-alive from arenas
// no longer listed. Re-invoke whenever global configuration changes.
func (m *Manager) SyncPermanentArenas(list string) {
	names := splitPermanentList(list)
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		name := SanitizeName(n)
		if name == "" {
			continue
		}
		wanted[name] = struct{}{}

		m.mu.Lock()
		a, exists := m.byName[name]
		m.mu.Unlock()
		if !exists {
			m.mu.Lock()
			a = m.createLocked(name)
			m.mu.Unlock()
		}
		a.KeepAlive = true
	}

	for _, a := range m.All() {
		if !a.KeepAlive {
			continue
		}
		if _, ok := wanted[a.Name]; !ok {
			a.KeepAlive = false
		}
	}
	m.permanent = names
}

func splitPermanentList(value string) []string {
	isDelim := func(r byte) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}
	var out []string
	start := -1
	for i := 0; i < len(value); i++ {
		if isDelim(value[i]) {
			if start >= 0 {
				out = append(out, value[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, value[start:])
	}
	return out
}

// ── Known arenas (§4.4: filesystem-backed trie of arena.conf directories) ─

// RefreshKnown replaces the known-arena set with names, lowercased,
// excluding "(default)" and dotfiles (the caller — a background filesystem
// watcher — is responsible for the directory scan itself; see
// internal/config's watcher, which calls this under a re-entry guard).
func (m *Manager) RefreshKnown(names []string) {
	next := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" || n == "(default)" || strings.HasPrefix(n, ".") {
			continue
		}
		next[strings.ToLower(n)] = struct{}{}
	}
	m.knownMu.Lock()
	m.known = next
	m.knownMu.Unlock()
}

// IsKnown reports whether name's arena.conf directory currently exists.
func (m *Manager) IsKnown(name string) bool {
	m.knownMu.RLock()
	defer m.knownMu.RUnlock()
	_, ok := m.known[strings.ToLower(name)]
	return ok
}

// ── Population summary ───────────────────────────────────────────────────
//
// The counts are cached until the next RefreshPopulation call; nothing in
// this package refreshes them on a timer.

// PopulationSnapshotter is implemented by the player registry so the arena
// manager can attribute each player to an arena without importing package
// player.
type PopulationSnapshotter interface {
	// ForEachCountable calls fn(arenaName string, playingNotSpec bool) for
	// every player that counts toward population (excludes fakes and
	// players with the exclude-population capability).
	ForEachCountable(fn func(arenaName string, playingNotSpec bool))
}

// RefreshPopulation recomputes per-arena counts and replaces the manager's
// cached per-arena-name snapshot (guarded by popMu, read via Population).
func (m *Manager) RefreshPopulation(snap PopulationSnapshotter) {
	m.popMu.Lock()
	defer m.popMu.Unlock()

	counts := make(map[string]popCount, len(m.popSeen))
	snap.ForEachCountable(func(arenaName string, playingNotSpec bool) {
		c := counts[arenaName]
		c.Total++
		if playingNotSpec {
			c.Playing++
		}
		counts[arenaName] = c
	})
	m.popSeen = counts
}

// Population returns the last-refreshed (Total, Playing) counts for name.
func (m *Manager) Population(name string) (total, playing int) {
	m.popMu.Lock()
	defer m.popMu.Unlock()
	c := m.popSeen[name]
	return c.Total, c.Playing
}

func newGUID() string {
	return uuid.NewString()
}
