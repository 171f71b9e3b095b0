// Package scripting wraps a single gopher-lua VM used to let a zone
// override a handful of pluggable decision points — flag placement
// (package flag's Behavior) and initial team/ship assignment (package
// player's FreqManager) — from Lua instead of a Go rebuild. Grounded on
// the teacher's own scripting engine, trimmed to the hook surface this
// core's two advisor-style contracts actually need; the teacher's much
// larger combat/skill/AI/item scripting surface has no analog here (this
// core has no combat, skill, or item system) and was not carried over.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for zone scripting. Single-goroutine
// access only — callers reach it from the mainloop or a single transport
// goroutine, never concurrently. Hot-reload is not implemented; a zone
// restart picks up script changes.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file directly under
// scriptsDir. A missing directory is not an error (scripting is optional);
// a script that fails to parse or run at load time is.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files directly in dir (non-recursive).
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasGlobal reports whether a Lua function with the given name is defined,
// letting a caller fall back to built-in logic without paying the cost (or
// logging the noise) of a failed call.
func (e *Engine) HasGlobal(name string) bool {
	return e.vm.GetGlobal(name) != lua.LNil
}

// CallFlagPlacementHook calls a Lua flag-placement hook (e.g.
// "place_flag_drop", "on_flag_spawn") with the owning freq and a reason
// string, expecting back an (x, y) pair. Used by the carry-flag engine's
// pluggable Behavior (package flag's LuaBehavior) to let a zone override
// the default weighted owned/center placement in script rather than Go.
// Returns ok=false if the hook is undefined or errors, so the caller can
// fall back to its built-in placement.
func (e *Engine) CallFlagPlacementHook(name string, freq int, reason string) (x, y int16, ok bool) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return 0, 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, lua.LNumber(freq), lua.LString(reason)); err != nil {
		e.log.Error("lua flag placement hook error", zap.String("hook", name), zap.Error(err))
		return 0, 0, false
	}
	yv := e.vm.Get(-1)
	xv := e.vm.Get(-2)
	e.vm.Pop(2)
	xn, xok := xv.(lua.LNumber)
	yn, yok := yv.(lua.LNumber)
	if !xok || !yok {
		return 0, 0, false
	}
	return int16(xn), int16(yn), true
}

// CallFreqHook calls a Lua freq-manager hook (e.g. "initial_freq") with a
// player id and the requested arena name, expecting back a (freq, ship)
// pair. Used by the player state machine's pluggable FreqManager (package
// player's ScriptFreqManager) to let a zone script initial team/ship
// placement instead of using the built-in balanced-teams default. Returns
// ok=false if the hook is undefined or errors, so the caller can fall back
// to its built-in assignment.
func (e *Engine) CallFreqHook(name string, playerID int64, arenaName string) (freq, ship int, ok bool) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return 0, 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, lua.LNumber(playerID), lua.LString(arenaName)); err != nil {
		e.log.Error("lua freq hook error", zap.String("hook", name), zap.Error(err))
		return 0, 0, false
	}
	shipv := e.vm.Get(-1)
	freqv := e.vm.Get(-2)
	e.vm.Pop(2)
	freqn, fok := freqv.(lua.LNumber)
	shipn, sok := shipv.(lua.LNumber)
	if !fok || !sok {
		return 0, 0, false
	}
	return int(freqn), int(shipn), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
