package player

import (
	"math"
	"time"

	"github.com/warpzone/server/internal/arena"
)

// DefaultFreqManager is the built-in balanced-teams policy: a new entrant
// is placed on whichever of freq 0/1 currently has fewer non-spectator
// players in the arena, and ship/freq-change requests are gated by an
// exponential-decay counter (halved every 10s) against the arena's
// General:ShipChangeLimit.
type DefaultFreqManager struct {
	reg *Registry
}

func NewDefaultFreqManager(reg *Registry) *DefaultFreqManager {
	return &DefaultFreqManager{reg: reg}
}

func (m *DefaultFreqManager) InitialFreq(a *arena.Arena, p *Player) (freq, ship int, ok bool) {
	var count0, count1 int
	for _, other := range m.reg.All() {
		if other.ID == p.ID || other.CurrentArena() != a || other.Ship == shipSpectator {
			continue
		}
		switch other.Freq {
		case 0:
			count0++
		case 1:
			count1++
		}
	}
	if count1 < count0 {
		return 1, shipSpectator, true
	}
	return 0, shipSpectator, true
}

func (m *DefaultFreqManager) CanChangeShip(p *Player) bool {
	return decayAllow(&p.shipChanges, &p.lastShipDecayMS, changeLimit(p))
}

func (m *DefaultFreqManager) CanChangeFreq(p *Player) bool {
	return decayAllow(&p.freqChanges, &p.lastFreqDecayMS, changeLimit(p))
}

func changeLimit(p *Player) int {
	a := p.CurrentArena()
	if a == nil || a.Config == nil {
		return 0 // no arena/config yet: unlimited
	}
	return a.Config.GetInt("General", "ShipChangeLimit", 0)
}

// ScriptEngine is the subset of scripting.Engine ScriptFreqManager calls.
// Declared locally, mirroring flag.ScriptEngine, so this package does not
// import package scripting except from this one adapter file.
type ScriptEngine interface {
	CallFreqHook(name string, playerID int64, arenaName string) (freq, ship int, ok bool)
	HasGlobal(name string) bool
}

// ScriptFreqManager adapts a scripting.Engine into a FreqManager, letting
// a zone override initial team/ship placement from Lua ("initial_freq")
// without touching this package. Ship/freq-change rate limiting always
// falls through to fallback, since the decay counters are plain Go state
// on *Player, not something worth exposing to script.
type ScriptFreqManager struct {
	script   ScriptEngine
	fallback FreqManager
}

func NewScriptFreqManager(script ScriptEngine, fallback FreqManager) *ScriptFreqManager {
	return &ScriptFreqManager{script: script, fallback: fallback}
}

func (m *ScriptFreqManager) InitialFreq(a *arena.Arena, p *Player) (freq, ship int, ok bool) {
	if m.script.HasGlobal("initial_freq") {
		if freq, ship, ok := m.script.CallFreqHook("initial_freq", p.ID, a.Name); ok {
			return freq, ship, true
		}
	}
	return m.fallback.InitialFreq(a, p)
}

func (m *ScriptFreqManager) CanChangeShip(p *Player) bool { return m.fallback.CanChangeShip(p) }
func (m *ScriptFreqManager) CanChangeFreq(p *Player) bool { return m.fallback.CanChangeFreq(p) }

// decayAllow halves *counter every 10s of elapsed time since the last
// call, then reports whether incrementing it by one stays at or under
// limit. limit <= 0 means unlimited. Always bumps the counter, even when
// the attempt is disallowed, matching the "temporarily disables further
// changes" language rather than silently ignoring repeated attempts.
func decayAllow(counter *float64, lastMS *int64, limit int) bool {
	now := time.Now().UnixMilli()
	if *lastMS != 0 {
		elapsedHalfLives := float64(now-*lastMS) / 10000
		if elapsedHalfLives > 0 {
			*counter *= math.Pow(0.5, elapsedHalfLives)
		}
	}
	*lastMS = now
	*counter++
	if limit <= 0 {
		return true
	}
	return *counter <= float64(limit)
}
