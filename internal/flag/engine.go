package flag

import (
	"sync"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/broker"
	"github.com/warpzone/server/internal/player"
	"go.uber.org/zap"
)

const tickIntervalMS = 5000

// Mainloop is the subset of package mainloop the flag engine needs.
// Declared locally, mirroring arena.Mainloop and player.Mainloop.
type Mainloop interface {
	QueueMainWork(fn func())
	SetTimer(key string, initialMS, intervalMS int, fn func())
}

// LagChecker reports whether a player is currently too lag-degraded for
// TouchFlag to honor (§4.8's "not lag-degraded" precondition). Declared
// locally so this engine does not need to depend on whatever module
// actually measures lag; nil means "never degraded".
type LagChecker interface {
	IsLagDegraded(playerID int64) bool
}

// Engine is the process-wide carry-flag engine: one Game per live arena,
// the 5s start/spawn timer, and the TouchFlag/DropFlags inbound handlers
// (§4.8).
type Engine struct {
	log  *zap.Logger
	root *broker.Scope
	loop Mainloop
	lag  LagChecker

	defaultBehavior Behavior

	mu    sync.Mutex
	games map[*arena.Arena]*Game

	freqMu           sync.Mutex
	lastFreqChangeMS map[int64]int64

	nowMS func() int64
}

// NewEngine wires the carry-flag engine to the broker's process scope. now
// supplies the mainloop clock (ms since some fixed epoch); callers pass a
// real wall-clock function in production and a controllable one in tests.
func NewEngine(log *zap.Logger, root *broker.Scope, loop Mainloop, lag LagChecker, now func() int64) *Engine {
	e := &Engine{
		log:              log,
		root:             root,
		loop:             loop,
		lag:              lag,
		defaultBehavior:  NewDefaultBehavior(1),
		games:            make(map[*arena.Arena]*Game),
		lastFreqChangeMS: make(map[int64]int64),
		nowMS:            now,
	}
	broker.RegisterCallback(root, e.onEnteringArena)
	broker.RegisterCallback(root, e.onLeavingArena)
	broker.RegisterCallback(root, e.onFreqShipChange)
	return e
}

// Start registers the 5s game-tick timer.
func (e *Engine) Start() {
	e.loop.SetTimer("flag-game-tick", tickIntervalMS, tickIntervalMS, e.tick)
}

// gameFor returns (creating if necessary) a's Game, loading Settings from
// a.Config on first access.
func (e *Engine) gameFor(a *arena.Arena) *Game {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[a]
	if ok {
		return g
	}
	g = newGame(a, LoadSettings(a.Config))
	e.games[a] = g
	return g
}

func (e *Engine) behaviorFor(a *arena.Arena) Behavior {
	var chosen Behavior
	broker.ForEachAdvisor[Behavior](a.Scope, func(b Behavior) bool {
		chosen = b
		return false
	})
	if chosen != nil {
		return chosen
	}
	return e.defaultBehavior
}

// onEnteringArena ensures the arena's game exists and replays every OnMap
// flag's location to the entering player (§4.8 "on arena entry").
func (e *Engine) onEnteringArena(ev player.EnteringArenaEvent) {
	g := e.gameFor(ev.Arena)
	for _, f := range g.onMapSnapshot() {
		broker.Fire(ev.Arena.Scope, FlagOnMapEvent{Arena: ev.Arena, Flag: f})
	}
}

// onLeavingArena drops any flags the departing player still carries,
// rather than letting them vanish silently with the session.
func (e *Engine) onLeavingArena(ev player.LeavingArenaEvent) {
	e.DropFlags(ev.Player, ev.Arena)
}

func (e *Engine) onFreqShipChange(ev player.FreqShipChangeEvent) {
	e.freqMu.Lock()
	e.lastFreqChangeMS[ev.Player.ID] = e.nowMS()
	e.freqMu.Unlock()
}

func (e *Engine) recentlyChangedFreqOrShip(playerID int64, lockoutMS int64) bool {
	e.freqMu.Lock()
	last, ok := e.lastFreqChangeMS[playerID]
	e.freqMu.Unlock()
	if !ok {
		return false
	}
	return e.nowMS()-last < lockoutMS
}

// tick drives the 5s game-state step (§4.8): Starting -> Running once
// start_timestamp is reached, and Running -> put every neuted (None) flag
// back on the map at its stored location, then behavior.SpawnFlags to top
// up the flag count.
func (e *Engine) tick() {
	e.mu.Lock()
	snapshot := make([]*Game, 0, len(e.games))
	for _, g := range e.games {
		snapshot = append(snapshot, g)
	}
	e.mu.Unlock()

	now := e.nowMS()
	for _, g := range snapshot {
		g.mu.Lock()
		state := g.State
		startAt := g.startAtMS
		g.mu.Unlock()

		switch state {
		case Stopped:
			if g.Settings.AutoStart {
				e.startGame(g, now)
			}
		case Starting:
			if now >= startAt {
				g.mu.Lock()
				g.State = Running
				g.mu.Unlock()
				e.behaviorFor(g.Arena).StartGame(g)
			}
		case Running:
			g.mu.Lock()
			var respawned []Flag
			for _, f := range g.Flags {
				if f.State == None {
					f.State = OnMap
					respawned = append(respawned, *f)
				}
			}
			g.mu.Unlock()
			for _, f := range respawned {
				broker.Fire(g.Arena.Scope, FlagOnMapEvent{Arena: g.Arena, Flag: f})
			}
			e.behaviorFor(g.Arena).SpawnFlags(g)
		}
	}
}

// startGame moves a Stopped game to Starting, arming it to flip to Running
// once ResetDelayMS has elapsed.
func (e *Engine) startGame(g *Game, now int64) {
	g.mu.Lock()
	g.State = Starting
	g.startAtMS = now + g.Settings.ResetDelayMS
	g.mu.Unlock()
}

// TouchFlag handles an inbound TouchFlag(flag_id) request (§4.8).
func (e *Engine) TouchFlag(p *player.Player, a *arena.Arena, flagID int) bool {
	g := e.gameFor(a)

	g.mu.Lock()
	running := g.State == Running
	g.mu.Unlock()
	if !running {
		return false
	}
	if p.CurrentStatus() != player.Playing {
		return false
	}
	if !e.playerEligible(p, g.Settings.ShipFreqChangeLockoutMS) {
		return false
	}

	g.mu.Lock()
	f, ok := g.Flags[flagID]
	if !ok {
		g.mu.Unlock()
		e.log.Info("touch of unknown or stale flag id ignored", zap.Int("flag_id", flagID), zap.Int64("player_id", p.ID))
		return false
	}
	if f.State != OnMap {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()

	return e.trySetFlagCarried(g, flagID, p, "touch")
}

// playerEligible implements TouchFlag's eligibility checks other than
// game/flag state: Playing, non-spectator, not mid-ship/freq-change, and
// not lag-degraded.
func (e *Engine) playerEligible(p *player.Player, lockoutMS int64) bool {
	if p.Ship == shipSpectator {
		return false
	}
	if e.recentlyChangedFreqOrShip(p.ID, lockoutMS) {
		return false
	}
	if e.lag != nil && e.lag.IsLagDegraded(p.ID) {
		return false
	}
	return true
}

const shipSpectator = 8

// DropFlags handles an inbound DropFlags request, and is also used
// internally when a player leaves an arena while still carrying flags
// (§4.8).
func (e *Engine) DropFlags(p *player.Player, a *arena.Arena) {
	g := e.gameFor(a)
	carried := g.flagsCarriedBy(p.ID)
	if len(carried) == 0 {
		return
	}
	broker.Fire(a.Scope, FlagDropEvent{Arena: a, Player: p})
	for _, f := range carried {
		e.adjustCarriedFlag(g, p, f.ID, ReasonDropped)
	}
}

// adjustCarriedFlag implements one flag's half of adjust_carried_flags: it
// fires FlagLostEvent, then places the flag per reason — Neut if the
// player was in a safe zone, Dropped (OnMap) otherwise.
func (e *Engine) adjustCarriedFlag(g *Game, p *player.Player, flagID int, reason LostReason) {
	broker.Fire(g.Arena.Scope, FlagLostEvent{Player: p, FlagID: flagID, Reason: reason})
	g.mu.Lock()
	if f, ok := g.Flags[flagID]; ok && f.State == Carried && f.CarrierID == p.ID {
		f.State = None
	}
	g.mu.Unlock()
	if p.InSafezone {
		loc := e.place(g, p.Freq, "safe", g.Settings.SafeOwnedWeight, g.Settings.SafeCenterWeight)
		e.trySetFlagNeuted(g, flagID, loc, p.Freq)
		return
	}
	loc := e.place(g, p.Freq, "drop", g.Settings.DropOwnedWeight, g.Settings.DropCenterWeight)
	e.trySetFlagOnMap(g, flagID, loc, p.Freq)
}

type point struct{ X, Y int16 }

func (e *Engine) place(g *Game, freq int, reason string, owned, center int) point {
	x, y := e.behaviorFor(g.Arena).PlaceFlag(g, freq, reason, owned, center)
	return point{X: x, Y: y}
}

// trySetFlagNeuted implements §4.8's try_set_flag_neuted: valid from None
// (update stored loc/freq only) and OnMap (send the fake-remove
// FlagLocation(-1,-1,-1) and update state); invalid from Carried.
func (e *Engine) trySetFlagNeuted(g *Game, flagID int, loc point, freq int) bool {
	g.mu.Lock()
	f, ok := g.Flags[flagID]
	if !ok {
		f = &Flag{ID: flagID}
		g.Flags[flagID] = f
	}
	if f.State == Carried {
		g.mu.Unlock()
		return false
	}
	wasOnMap := f.State == OnMap
	f.State = None
	f.X, f.Y, f.Freq = loc.X, loc.Y, freq
	g.mu.Unlock()

	if wasOnMap {
		broker.Fire(g.Arena.Scope, FlagOnMapEvent{Arena: g.Arena, Flag: Flag{ID: flagID, State: None, X: -1, Y: -1, Freq: -1}})
	}
	return true
}

// trySetFlagOnMap implements try_set_flag_on_map: valid from None/OnMap.
func (e *Engine) trySetFlagOnMap(g *Game, flagID int, loc point, freq int) bool {
	g.mu.Lock()
	f, ok := g.Flags[flagID]
	if !ok {
		f = &Flag{ID: flagID}
		g.Flags[flagID] = f
	}
	if f.State == Carried {
		g.mu.Unlock()
		return false
	}
	f.State = OnMap
	f.X, f.Y, f.Freq = loc.X, loc.Y, freq
	snapshot := *f
	g.mu.Unlock()

	broker.Fire(g.Arena.Scope, FlagOnMapEvent{Arena: g.Arena, Flag: snapshot})
	return true
}

// trySetFlagCarried implements try_set_flag_carried: valid from None/OnMap.
// reason "kill" suppresses the FlagPickupEvent (the kill packet already
// implies pickup).
func (e *Engine) trySetFlagCarried(g *Game, flagID int, carrier *player.Player, reason string) bool {
	g.mu.Lock()
	f, ok := g.Flags[flagID]
	if !ok || f.State == Carried {
		g.mu.Unlock()
		return false
	}
	f.State = Carried
	f.CarrierID = carrier.ID
	g.mu.Unlock()

	broker.Fire(g.Arena.Scope, FlagGainEvent{Player: carrier, FlagID: flagID})
	if reason != "kill" {
		broker.Fire(g.Arena.Scope, FlagPickupEvent{Arena: g.Arena, Player: carrier, FlagID: flagID})
	}
	return true
}

// TransferFlagsForKill implements transfer_flags_for_player_kill (§4.8):
// every flag killed was carrying moves to None, fires FlagLostEvent(Killed)
// per flag, and is either transferred to killer or neuted-for-respawn
// depending on Settings.Carry, FriendlyTransfer, and whether killed was in
// a safe zone.
func (e *Engine) TransferFlagsForKill(killed, killer *player.Player, a *arena.Arena) {
	g := e.gameFor(a)
	carried := g.flagsCarriedBy(killed.ID)
	if len(carried) == 0 {
		return
	}

	teamKill := killed.Freq == killer.Freq
	for _, f := range carried {
		broker.Fire(a.Scope, FlagLostEvent{Player: killed, FlagID: f.ID, Reason: ReasonKilled})
		g.mu.Lock()
		f.State = None
		g.mu.Unlock()

		switch {
		case teamKill && !g.Settings.FriendlyTransfer:
			loc := e.place(g, killed.Freq, "tk", g.Settings.TKOwnedWeight, g.Settings.TKCenterWeight)
			e.trySetFlagNeuted(g, f.ID, loc, killed.Freq)
		case g.Settings.Carry == CarryUnlessSafe && killed.InSafezone:
			loc := e.place(g, killed.Freq, "safe", g.Settings.SafeOwnedWeight, g.Settings.SafeCenterWeight)
			e.trySetFlagNeuted(g, f.ID, loc, killed.Freq)
		case g.Settings.Carry == CarryNone:
			loc := e.place(g, killed.Freq, "neut", g.Settings.NeutOwnedWeight, g.Settings.NeutCenterWeight)
			e.trySetFlagNeuted(g, f.ID, loc, killed.Freq)
		default:
			e.trySetFlagCarried(g, f.ID, killer, "kill")
		}
	}
}

// ResetGame implements reset_game (§4.8): broadcasts FlagGameResetEvent if
// the game was running, clears the flag table, fires a final FlagLostEvent
// (FlagID and Reason only; Player is left nil) per flag that was carried,
// and optionally restarts.
func (e *Engine) ResetGame(a *arena.Arena, winnerFreq, points int, allowAutoStart bool) {
	g := e.gameFor(a)

	g.mu.Lock()
	wasRunning := g.State != Stopped
	carriedSnapshot := make([]*Flag, 0, len(g.Flags))
	for _, f := range g.Flags {
		if f.State == Carried {
			carriedSnapshot = append(carriedSnapshot, f)
		}
	}
	g.Flags = make(map[int]*Flag)
	g.nextFlagID = 0
	g.State = Stopped
	g.startAtMS = 0
	g.mu.Unlock()

	if wasRunning {
		broker.Fire(a.Scope, FlagGameResetEvent{Arena: a, WinnerFreq: winnerFreq, Points: points})
	}
	for _, f := range carriedSnapshot {
		broker.Fire(a.Scope, FlagLostEvent{FlagID: f.ID, Reason: ReasonKilled})
	}

	if allowAutoStart && g.Settings.AutoStart {
		e.startGame(g, e.nowMS())
	}
}
