package flag

import "math/rand"

// Behavior is the pluggable placement/lifecycle policy §4.8 calls out
// ("pluggable behavior"). It is registered per arena through the broker's
// advisor list (mirroring arena.PlacementAdvisor), so a zone can swap in a
// scripted behavior without the engine itself changing.
type Behavior interface {
	// PlaceFlag picks a spawn location for a flag being (re-)placed for
	// reason ("drop", "neut", "tk", "safe", or "spawn"), given the owning
	// freq and the configured Owned/Center weight pair for that reason.
	PlaceFlag(g *Game, ownerFreq int, reason string, ownedWeight, centerWeight int) (x, y int16)
	// StartGame runs once when the game transitions Starting -> Running.
	StartGame(g *Game)
	// SpawnFlags tops the flag count up toward Settings.MinFlags..MaxFlags;
	// called every 5s tick while the game is Running.
	SpawnFlags(g *Game)
}

// DefaultBehavior is the built-in Go implementation: a weighted
// owned/center coin flip, with "owned" placement jittered within
// SpawnRadius of the configured spawn point (this engine does not track a
// separate "last owner position" layer, so "owned" and "center" both
// resolve relative to the same configured spawn point, distinguished only
// by jitter radius).
type DefaultBehavior struct {
	rng *rand.Rand
}

func NewDefaultBehavior(seed int64) *DefaultBehavior {
	return &DefaultBehavior{rng: rand.New(rand.NewSource(seed))}
}

func (b *DefaultBehavior) PlaceFlag(g *Game, ownerFreq int, reason string, ownedWeight, centerWeight int) (int16, int16) {
	total := ownedWeight + centerWeight
	if total <= 0 || b.rng.Intn(total) >= ownedWeight {
		return int16(g.Settings.SpawnX), int16(g.Settings.SpawnY)
	}
	return jitter(b.rng, g.Settings.SpawnX, g.Settings.SpawnY, g.Settings.SpawnRadius)
}

func (b *DefaultBehavior) StartGame(g *Game) {}

// SpawnFlags tops the game up to MinFlags; it does not scale further
// toward MaxFlags on its own (a zone wanting random growth within the
// range registers its own Behavior).
func (b *DefaultBehavior) SpawnFlags(g *Game) {
	g.mu.Lock()
	need := g.Settings.MinFlags - len(g.Flags)
	ids := make([]int, 0, need)
	for i := 0; i < need; i++ {
		id := g.nextFlagID
		g.nextFlagID++
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		x, y := b.PlaceFlag(g, 0, "spawn", 1, 0)
		g.mu.Lock()
		g.Flags[id] = &Flag{ID: id, State: OnMap, X: x, Y: y}
		g.mu.Unlock()
	}
}

func jitter(rng *rand.Rand, cx, cy, radius int) (int16, int16) {
	if radius <= 0 {
		return int16(cx), int16(cy)
	}
	dx := rng.Intn(2*radius+1) - radius
	dy := rng.Intn(2*radius+1) - radius
	return int16(cx + dx), int16(cy + dy)
}
