// Package flag implements the carry-flag engine (spec C8): per-arena game
// state, flag placement/transfer transitions, and the 5s mainloop timer
// that starts and tops up each arena's game. Grounded on the player state
// machine's status-transition shape (internal/player/statemachine.go) for
// the None/OnMap/Carried transition handlers, and on the arena manager's
// map-of-live-instances pattern for per-arena game bookkeeping.
package flag

import (
	"sync"

	"github.com/warpzone/server/internal/arena"
)

// GameState is one arena's carry-flag game lifecycle (§4.8).
type GameState int

const (
	Stopped GameState = iota
	Starting
	Running
)

func (s GameState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}

// State is one flag's own small state machine, independent of the game's.
type State int

const (
	// None: not present anywhere — a neuted flag, which the engine's next
	// Running tick puts back on the map at its stored location.
	None State = iota
	OnMap
	Carried
)

func (s State) String() string {
	switch s {
	case None:
		return "None"
	case OnMap:
		return "OnMap"
	case Carried:
		return "Carried"
	default:
		return "Unknown"
	}
}

// LostReason distinguishes why a carried flag left a player's hands, for
// FlagLostEvent subscribers (scoring modules, chat announcements).
type LostReason int

const (
	ReasonDropped LostReason = iota
	ReasonKilled
)

// Flag is one flag's current state within a single arena's game.
type Flag struct {
	ID        int
	State     State
	X, Y      int16
	Freq      int   // owning/neuted freq; meaningless while Carried
	CarrierID int64 // valid only while State == Carried
}

// Game is one arena's carry-flag game: its lifecycle state, settings
// snapshot, and flag table. Settings is loaded once at creation and never
// mutated afterward, so it is safe to read without holding mu; State,
// Flags, and nextFlagID are mu-guarded.
type Game struct {
	mu sync.Mutex

	Arena      *arena.Arena
	State      GameState
	Settings   Settings
	Flags      map[int]*Flag
	nextFlagID int

	startAtMS int64 // mainloop-clock ms Starting began; 0 while not Starting
}

func newGame(a *arena.Arena, settings Settings) *Game {
	return &Game{
		Arena:    a,
		State:    Stopped,
		Settings: settings,
		Flags:    make(map[int]*Flag),
	}
}

// flagsCarriedBy returns (a snapshot of) every flag currently carried by
// playerID. Caller must not hold g.mu.
func (g *Game) flagsCarriedBy(playerID int64) []*Flag {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*Flag
	for _, f := range g.Flags {
		if f.State == Carried && f.CarrierID == playerID {
			out = append(out, f)
		}
	}
	return out
}

func (g *Game) flagCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Flags)
}

// onMapSnapshot returns a snapshot of every flag currently OnMap, for the
// arena-entry FlagLocation replay.
func (g *Game) onMapSnapshot() []Flag {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Flag
	for _, f := range g.Flags {
		if f.State == OnMap {
			out = append(out, *f)
		}
	}
	return out
}
