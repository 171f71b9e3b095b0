package player

import (
	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/broker"
	"go.uber.org/zap"
)

const tickIntervalMS = 100

// StateMachine drives the C6 player lifecycle: a 100ms timer scans every
// player once, skips the passive Wait* statuses, and dispatches exactly one
// handler per player per tick for every other status (§4.5). Handlers that
// start async work (auth, persistence) transition straight to the matching
// Wait* status before returning, and post their continuation back onto the
// mainloop when the collaborator calls back — so a player's status is only
// ever touched from the mainloop goroutine.
type StateMachine struct {
	log    *zap.Logger
	reg    *Registry
	root   *broker.Scope
	arenas *arena.Manager
	loop   Mainloop

	auth      AuthProvider
	global    GlobalSync
	arenaSync ArenaSync
	advisor   arena.PlacementAdvisor
	freqMgr   FreqManager
}

func NewStateMachine(log *zap.Logger, reg *Registry, root *broker.Scope, arenas *arena.Manager, loop Mainloop, auth AuthProvider, global GlobalSync, arenaSync ArenaSync, advisor arena.PlacementAdvisor) *StateMachine {
	return &StateMachine{
		log: log, reg: reg, root: root, arenas: arenas, loop: loop,
		auth: auth, global: global, arenaSync: arenaSync, advisor: advisor,
	}
}

// SetFreqManager installs the freq-manager advisor consulted by
// DoFreqAndArenaSync and the ship/freq-change handlers. Optional: a zone
// with no freq-manager module attached leaves this nil.
func (sm *StateMachine) SetFreqManager(fm FreqManager) { sm.freqMgr = fm }

// CanChangeShip reports whether p's ship-change request should be honored
// right now. With no freq manager installed, every request is allowed
// (§ Send-ship/freq enforcement applies only when a freq-manager module
// is attached).
func (sm *StateMachine) CanChangeShip(p *Player) bool {
	if sm.freqMgr == nil {
		return true
	}
	return sm.freqMgr.CanChangeShip(p)
}

// CanChangeFreq reports whether p's freq-change request should be honored
// right now.
func (sm *StateMachine) CanChangeFreq(p *Player) bool {
	if sm.freqMgr == nil {
		return true
	}
	return sm.freqMgr.CanChangeFreq(p)
}

// Start registers the 100ms tick timer on the mainloop.
func (sm *StateMachine) Start() {
	sm.loop.SetTimer("player-status-tick", tickIntervalMS, tickIntervalMS, sm.tick)
}

// Tick runs one status scan/dispatch pass outside of the normal 100ms
// timer. Exposed for tests and other packages that drive the state
// machine against a Mainloop fake whose SetTimer is a no-op.
func (sm *StateMachine) Tick() {
	sm.tick()
}

type scheduled struct {
	p   *Player
	old Status
}

// tick takes a snapshot of every player's current status under the
// registry's read lock, then dispatches handlers after releasing it, so a
// slow handler never blocks new connections from joining the table.
func (sm *StateMachine) tick() {
	players := sm.reg.All()
	work := make([]scheduled, 0, len(players))
	for _, p := range players {
		old := p.getStatus()
		if old.waiting() || old == Connected || old == LoggedIn || old == Playing || old == TimeWait {
			continue
		}
		work = append(work, scheduled{p, old})
	}
	for _, w := range work {
		sm.dispatch(w.p, w.old)
	}
}

func (sm *StateMachine) dispatch(p *Player, old Status) {
	switch old {
	case NeedAuth:
		sm.handleNeedAuth(p)
	case NeedGlobalSync:
		sm.handleNeedGlobalSync(p)
	case DoGlobalCallbacks:
		broker.Fire(sm.root, ConnectEvent{Player: p})
		p.setStatus(SendLoginResponse)
	case SendLoginResponse:
		p.setStatus(LoggedIn)
	case DoFreqAndArenaSync:
		sm.handleDoFreqAndArenaSync(p)
	case ArenaRespAndCBS:
		broker.Fire(sm.root, EnteringArenaEvent{Player: p, Arena: p.Arena})
		p.setStatus(Playing)
	case LeavingArena:
		broker.Fire(sm.root, LeavingArenaEvent{Player: p, Arena: p.Arena})
		p.setStatus(DoArenaSync2)
	case DoArenaSync2:
		sm.handleDoArenaSync2(p)
	case LeavingZone:
		sm.handleLeavingZone(p)
	}
}

// BeginLogin is called by the transport layer on receiving a LOGIN packet
// (§4.6); it moves a freshly-Connected player into the auth pipeline.
func (sm *StateMachine) BeginLogin(p *Player, req AuthRequest) {
	p.mu.Lock()
	p.pendingAuth = &req
	p.mu.Unlock()
	p.setStatus(NeedAuth)
}

func (sm *StateMachine) handleNeedAuth(p *Player) {
	p.mu.Lock()
	req := p.pendingAuth
	p.mu.Unlock()
	if req == nil {
		sm.kick(p)
		return
	}
	p.setStatus(WaitAuth)
	sm.auth.Authenticate(*req, func(res AuthResult) {
		sm.loop.QueueMainWork(func() { sm.onAuthDone(p, res) })
	})
}

// onAuthDone implements §4.5's duplicate-login protocol (S2): if another
// session already holds this name, the new session is left parked in
// WaitAuth — not advanced — while the old session is force-walked through
// its leave pipeline; onZoneLeaveSaveDone releases the new session once the
// old one finishes its global-sync teardown.
func (sm *StateMachine) onAuthDone(p *Player, res AuthResult) {
	if !res.OK {
		sm.kick(p)
		return
	}
	prev := sm.reg.BindName(p, res.Name)
	if prev != nil && prev != p {
		prev.ReplacedBy = p
		prev.replacement = p
		sm.forceLeave(prev)
		return
	}
	p.setStatus(NeedGlobalSync)
}

func (sm *StateMachine) handleNeedGlobalSync(p *Player) {
	p.setStatus(WaitGlobalSync1)
	sm.global.RequestPlayerGlobalLoad(p, func() {
		sm.loop.QueueMainWork(func() { p.setStatus(DoGlobalCallbacks) })
	})
}

// RequestGo is called by the transport layer on receiving a GO packet
// (§4.6): a LoggedIn or Playing player asks to enter (or switch to) an
// arena by name.
func (sm *StateMachine) RequestGo(p *Player, arenaName string) {
	p.mu.Lock()
	p.NewArena = arenaName
	wasPlaying := p.Status == Playing
	p.mu.Unlock()

	if wasPlaying {
		p.setStatus(LeavingArena) // re-enters DoFreqAndArenaSync once the old arena's save completes
		return
	}
	p.setStatus(DoFreqAndArenaSync)
}

func (sm *StateMachine) handleDoFreqAndArenaSync(p *Player) {
	p.mu.Lock()
	requested := p.NewArena
	p.mu.Unlock()

	a := sm.arenas.CompleteGo(p.ID, requested, sm.advisor)

	p.mu.Lock()
	p.Arena = a
	p.NewArena = ""
	p.Ship = shipSpectator
	p.Freq = a.SpecFreq
	p.mu.Unlock()
	sm.arenas.AddPlayer(a, p.ID)

	broker.Fire(sm.root, PreEnterArenaEvent{Player: p, Arena: a})

	if sm.freqMgr != nil {
		if freq, ship, ok := sm.freqMgr.InitialFreq(a, p); ok {
			p.mu.Lock()
			p.Freq = freq
			p.Ship = ship
			p.mu.Unlock()
		}
	}

	p.setStatus(WaitArenaSync1)
	sm.arenaSync.RequestPlayerArenaLoad(p, a, func() {
		sm.loop.QueueMainWork(func() { p.setStatus(ArenaRespAndCBS) })
	})
}

// RequestLeaveArena is called on a LEAVE packet, or internally to send a
// Playing player through arena-save on the way to disconnecting entirely.
func (sm *StateMachine) RequestLeaveArena(p *Player, disconnecting bool) {
	p.mu.Lock()
	p.leavingZone = disconnecting
	p.mu.Unlock()
	p.setStatus(LeavingArena)
}

// Disconnect drives a player out of the zone entirely, routing it through
// an arena-leave first if it is currently in one.
func (sm *StateMachine) Disconnect(p *Player) {
	p.mu.Lock()
	inArena := p.Arena != nil
	p.leavingZone = true
	p.mu.Unlock()

	if inArena {
		p.setStatus(LeavingArena)
		return
	}
	p.setStatus(LeavingZone)
}

func (sm *StateMachine) handleDoArenaSync2(p *Player) {
	p.setStatus(WaitArenaSync2)
	sm.arenaSync.RequestPlayerArenaSave(p, p.Arena, func() {
		sm.loop.QueueMainWork(func() { sm.onArenaSaveDone(p) })
	})
}

func (sm *StateMachine) onArenaSaveDone(p *Player) {
	p.mu.Lock()
	a := p.Arena
	p.Arena = nil
	leaving := p.leavingZone
	next := p.NewArena
	p.mu.Unlock()

	if a != nil {
		sm.arenas.RemovePlayer(a, p.ID)
	}

	switch {
	case leaving:
		p.setStatus(LeavingZone)
	case next != "":
		p.setStatus(DoFreqAndArenaSync)
	default:
		p.setStatus(LoggedIn)
	}
}

func (sm *StateMachine) handleLeavingZone(p *Player) {
	broker.Fire(sm.root, DisconnectEvent{Player: p})
	p.setStatus(WaitGlobalSync2)
	sm.global.RequestPlayerGlobalSave(p, func() {
		sm.loop.QueueMainWork(func() { sm.onZoneLeaveSaveDone(p) })
	})
}

func (sm *StateMachine) onZoneLeaveSaveDone(p *Player) {
	p.setStatus(TimeWait)
	sm.reg.Remove(p)
	if p.replacement != nil {
		p.replacement.setStatus(NeedGlobalSync)
		p.replacement = nil
	}
}

// kick forces a player with no arena membership straight to the zone-leave
// save step, used for auth failure and rejected logins.
func (sm *StateMachine) kick(p *Player) {
	p.mu.Lock()
	p.leavingZone = true
	p.mu.Unlock()
	p.setStatus(LeavingZone)
}

// forceLeave drives a duplicate-login loser out, regardless of what it was
// doing (§4.5, S2): if it already holds an arena slot, it goes through the
// normal arena-save path first; otherwise straight to zone-leave.
func (sm *StateMachine) forceLeave(p *Player) {
	p.mu.Lock()
	inArena := p.Arena != nil
	p.leavingZone = true
	p.mu.Unlock()

	if inArena {
		p.setStatus(LeavingArena)
		return
	}
	p.setStatus(LeavingZone)
}
