// Package moduleman implements the module manager (spec C2): named units
// with load/post_load/pre_unload/unload lifecycle hooks, optionally
// attachable to individual arenas. All lifecycle calls are expected to run
// on the mainloop (package mainloop) — this package does not itself
// enforce that, matching the teacher's system.Runner which trusts its
// caller to drive it from the single game-loop goroutine.
package moduleman

import (
	"fmt"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/broker"
)

// Module is a named unit with the four lifecycle hooks. Load/Unload report
// success; a module returning false from Unload signals the broker still
// has outstanding references and the manager must not proceed.
type Module interface {
	Name() string
	Load(root *broker.Scope) bool
	PostLoad(root *broker.Scope)
	PreUnload(root *broker.Scope)
	Unload(root *broker.Scope) bool
}

// Attachable is implemented by modules that bind per-arena resources
// (registering arena-scoped interfaces/advisors) on top of their global
// Load/Unload.
type Attachable interface {
	Module
	Attach(a *arena.Arena) error
	Detach(a *arena.Arena) error
}

type loadedModule struct {
	mod      Module
	attached []*arena.Arena // attachment order, for reverse-order detach
}

// Manager tracks the active module set and drives their lifecycle.
type Manager struct {
	root    *broker.Scope
	active  []*loadedModule
	byName  map[string]*loadedModule
}

func NewManager(root *broker.Scope) *Manager {
	return &Manager{
		root:   root,
		byName: make(map[string]*loadedModule),
	}
}

// LoadModule constructs (already-instantiated) mod, calls Load, and adds it
// to the active set on success. Returns an error if Load fails or the name
// is already loaded.
func (m *Manager) LoadModule(mod Module) error {
	name := mod.Name()
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("moduleman: %q already loaded", name)
	}
	if !mod.Load(m.root) {
		return fmt.Errorf("moduleman: %q failed to load", name)
	}
	lm := &loadedModule{mod: mod}
	m.active = append(m.active, lm)
	m.byName[name] = lm
	return nil
}

// PostLoadAll calls PostLoad on every active module, in load order, once
// every requested LoadModule call for this boot has completed. Used to bind
// optional collaborators that may have loaded after this module did.
func (m *Manager) PostLoadAll() {
	for _, lm := range m.active {
		lm.mod.PostLoad(m.root)
	}
}

// UnloadAll calls PreUnload (reverse load order) then Unload (reverse load
// order) on every active module. A module whose Unload returns false is
// left in the active set and reported as an error to the caller; this is a
// programming error per the broker's failure semantics ("the broker must
// not silently succeed").
func (m *Manager) UnloadAll() []error {
	var errs []error
	for i := len(m.active) - 1; i >= 0; i-- {
		m.active[i].mod.PreUnload(m.root)
	}
	remaining := m.active[:0]
	for i := len(m.active) - 1; i >= 0; i-- {
		lm := m.active[i]
		if lm.mod.Unload(m.root) {
			delete(m.byName, lm.mod.Name())
			continue
		}
		errs = append(errs, fmt.Errorf("moduleman: %q refused to unload", lm.mod.Name()))
		remaining = append(remaining, lm)
	}
	m.active = remaining
	return errs
}

// AttachModuleAsync attaches the named module to a (used during arena init
// phase 1, DoInit1). Returns an error if the module is unknown or is not
// Attachable, or if Attach itself fails.
func (m *Manager) AttachModuleAsync(name string, a *arena.Arena) error {
	lm, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("moduleman: %q not loaded", name)
	}
	att, ok := lm.mod.(Attachable)
	if !ok {
		return fmt.Errorf("moduleman: %q is not attachable", name)
	}
	if err := att.Attach(a); err != nil {
		return fmt.Errorf("moduleman: attach %q to %s: %w", name, a.Name, err)
	}
	lm.attached = append(lm.attached, a)
	return nil
}

// DetachAllFromArenaAsync detaches every module attached to a, in reverse
// load order (the order modules were loaded, not the order they were
// attached to a; the two differ when an arena's attach list names modules
// in another order), and returns false if any detach call fails — a
// fatal-to-arena error per §7 that the arena manager must respond to by
// renaming the arena and marking it keep-alive.
func (m *Manager) DetachAllFromArenaAsync(a *arena.Arena) bool {
	ok := true
	for i := len(m.active) - 1; i >= 0; i-- {
		lm := m.active[i]
		att, isAttachable := lm.mod.(Attachable)
		if !isAttachable {
			continue
		}
		idx := -1
		for j, aa := range lm.attached {
			if aa == a {
				idx = j
				break
			}
		}
		if idx < 0 {
			continue
		}
		if err := att.Detach(a); err != nil {
			ok = false
			continue
		}
		lm.attached = append(lm.attached[:idx], lm.attached[idx+1:]...)
	}
	return ok
}

// ParseAttachList splits a "Modules:AttachModules" config value on space,
// tab, ':' and ';' delimiters per §4.4 DoInit1.
func ParseAttachList(value string) []string {
	isDelim := func(r rune) bool {
		return r == ' ' || r == '\t' || r == ':' || r == ';'
	}
	var out []string
	start := -1
	for i, r := range value {
		if isDelim(r) {
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
