package flag

// ScriptEngine is the subset of scripting.Engine this package calls.
// Declared locally so package flag does not import package scripting
// except from the one adapter file that actually needs it.
type ScriptEngine interface {
	CallFlagPlacementHook(name string, freq int, reason string) (x, y int16, ok bool)
	HasGlobal(name string) bool
}

// LuaBehavior adapts a scripting.Engine into a Behavior, letting a zone
// override placement and the start/spawn hooks from Lua without touching
// this engine. Falls back to fallback (normally DefaultBehavior) for any
// hook the loaded scripts don't define.
type LuaBehavior struct {
	script   ScriptEngine
	fallback Behavior
}

func NewLuaBehavior(script ScriptEngine, fallback Behavior) *LuaBehavior {
	return &LuaBehavior{script: script, fallback: fallback}
}

func (b *LuaBehavior) PlaceFlag(g *Game, ownerFreq int, reason string, ownedWeight, centerWeight int) (int16, int16) {
	hookName := "place_flag_" + reason
	if x, y, ok := b.script.CallFlagPlacementHook(hookName, ownerFreq, reason); ok {
		return x, y
	}
	return b.fallback.PlaceFlag(g, ownerFreq, reason, ownedWeight, centerWeight)
}

func (b *LuaBehavior) StartGame(g *Game) {
	if b.script.HasGlobal("on_flag_game_start") {
		b.script.CallFlagPlacementHook("on_flag_game_start", 0, "start")
		return
	}
	b.fallback.StartGame(g)
}

func (b *LuaBehavior) SpawnFlags(g *Game) {
	if b.script.HasGlobal("on_flag_spawn") {
		need := g.Settings.MinFlags - g.flagCount()
		for i := 0; i < need; i++ {
			x, y, ok := b.script.CallFlagPlacementHook("on_flag_spawn", 0, "spawn")
			if !ok {
				break
			}
			g.mu.Lock()
			id := g.nextFlagID
			g.nextFlagID++
			g.Flags[id] = &Flag{ID: id, State: OnMap, X: x, Y: y}
			g.mu.Unlock()
		}
		return
	}
	b.fallback.SpawnFlags(g)
}
