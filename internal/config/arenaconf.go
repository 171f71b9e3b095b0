package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/broker"
	"go.uber.org/zap"
)

// doc is a section->key->value TOML document, the unit the arena config
// hierarchy is built from.
type doc map[string]map[string]any

func loadDoc(path string) (doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d := doc{}
	if _, err := toml.Decode(string(data), &d); err != nil {
		return nil, err
	}
	return d, nil
}

// handle is the concrete arena.ConfigHandle: three docs consulted in order
// (arena-specific, base-name, global), matching §3's "Configuration
// handle ... falls back through a hierarchy."
type handle struct {
	layers [3]doc // [0]=arena-specific, [1]=base-name, [2]=global
}

func (h *handle) GetStr(section, key, def string) string {
	for _, d := range h.layers {
		if d == nil {
			continue
		}
		if sec, ok := d[section]; ok {
			if v, ok := sec[key]; ok {
				if s, ok := v.(string); ok {
					return s
				}
			}
		}
	}
	return def
}

func (h *handle) GetInt(section, key string, def int) int {
	for _, d := range h.layers {
		if d == nil {
			continue
		}
		if sec, ok := d[section]; ok {
			if v, ok := sec[key]; ok {
				switch n := v.(type) {
				case int64:
					return int(n)
				case int:
					return n
				}
			}
		}
	}
	return def
}

func (h *handle) Close() {}

var _ arena.ConfigHandle = (*handle)(nil)

// Store is the (out-of-scope, per the spec) configuration-file store's
// concrete implementation: it opens per-arena config handles with the
// arena -> base-name -> global fallback hierarchy, and watches the arenas
// directory so the arena manager's known-arena index and running arenas'
// ConfChanged notifications stay current.
//
// Grounded on the teacher's own BurntSushi/toml-backed internal/config,
// generalized from one flat process config into a three-layer per-arena
// hierarchy; the directory watch is new (the teacher never watched its
// config for changes), built on fsnotify the way the rest of the example
// pack's services use it for config/file reload.
type Store struct {
	rootDir    string
	globalPath string
	log        *zap.Logger
	root       *broker.Scope

	mu    sync.RWMutex
	cache map[string]doc // path -> parsed doc, invalidated on fs events

	watcher   *fsnotify.Watcher
	refreshing atomic.Bool
	pending    atomic.Bool
	known      KnownRefresher
	lookup     ArenaLookup
}

// KnownRefresher is the subset of arena.Manager the store needs to publish
// a freshly scanned known-arena set (arena.Manager.RefreshKnown).
type KnownRefresher interface {
	RefreshKnown(names []string)
}

// ArenaLookup lets the store find the live *arena.Arena for a changed
// config file so it can fire arena.ConfChangedEvent at the right scope.
type ArenaLookup interface {
	FindByName(name string) (*arena.Arena, bool)
}

func NewStore(rootDir string, root *broker.Scope, log *zap.Logger) *Store {
	return &Store{
		rootDir:    rootDir,
		globalPath: filepath.Join(rootDir, "global.conf"),
		log:        log,
		root:       root,
		cache:      make(map[string]doc),
	}
}

// Bind wires the known-arena refresher and arena lookup used by the
// background watcher; called once during boot after both the store and the
// arena manager exist (they would otherwise import-cycle each other).
func (s *Store) Bind(known KnownRefresher, lookup ArenaLookup) {
	s.known = known
	s.lookup = lookup
}

func (s *Store) docFor(path string) doc {
	s.mu.RLock()
	if d, ok := s.cache[path]; ok {
		s.mu.RUnlock()
		return d
	}
	s.mu.RUnlock()

	d, err := loadDoc(path)
	if err != nil {
		d = nil // missing/unparseable layers are simply absent, not fatal
	}
	s.mu.Lock()
	s.cache[path] = d
	s.mu.Unlock()
	return d
}

// Open implements arena.ConfigOpener.
func (s *Store) Open(arenaName, baseName string) (arena.ConfigHandle, error) {
	arenaPath := filepath.Join(s.rootDir, arenaName, "arena.conf")
	basePath := filepath.Join(s.rootDir, baseName, "arena.conf")

	arenaDoc, err := loadDoc(arenaPath)
	if err != nil {
		// A missing or unparseable arena-specific file just leaves that
		// layer absent; Open only fails below when the base-name and
		// global layers are absent too.
		arenaDoc = nil
	}
	baseDoc := s.docFor(basePath)
	globalDoc := s.docFor(s.globalPath)

	if arenaDoc == nil && baseDoc == nil && globalDoc == nil {
		return nil, os.ErrNotExist
	}
	return &handle{layers: [3]doc{arenaDoc, baseDoc, globalDoc}}, nil
}

// StartWatch begins watching the arenas root directory (and its immediate
// subdirectories) for changes, per §4.4's "watch the arenas directory
// recursively." Safe to call once; further refreshes self-reschedule
// rather than overlap, per §5's "guarded by a re-entry flag."
func (s *Store) StartWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = w

	if err := w.Add(s.rootDir); err != nil {
		s.log.Warn("failed to watch arenas directory", zap.Error(err))
	}
	s.addExistingSubdirs()

	go s.watchLoop()
	s.refreshKnown()
	return nil
}

func (s *Store) addExistingSubdirs() {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = s.watcher.Add(filepath.Join(s.rootDir, e.Name()))
		}
	}
}

func (s *Store) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.onEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("arenas directory watch error", zap.Error(err))
		}
	}
}

func (s *Store) onEvent(ev fsnotify.Event) {
	s.mu.Lock()
	delete(s.cache, ev.Name)
	s.mu.Unlock()

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = s.watcher.Add(ev.Name)
		}
	}

	if strings.HasSuffix(ev.Name, "arena.conf") && s.lookup != nil {
		name := filepath.Base(filepath.Dir(ev.Name))
		if a, ok := s.lookup.FindByName(strings.ToLower(name)); ok {
			broker.Fire(s.root, arena.ConfChangedEvent{Arena: a})
		}
	}

	s.refreshKnown()
}

// refreshKnown re-scans the arenas directory for arena.conf-bearing
// subdirectories and pushes the result to the bound arena.Manager. At most
// one scan runs at a time; a refresh requested mid-scan sets pending and
// the running scan re-runs itself once before returning, matching the
// spec's self-rescheduling re-entry guard.
func (s *Store) refreshKnown() {
	if s.known == nil {
		return
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		s.pending.Store(true)
		return
	}
	go func() {
		for {
			names := s.scanKnown()
			s.known.RefreshKnown(names)
			if !s.pending.CompareAndSwap(true, false) {
				break
			}
		}
		s.refreshing.Store(false)
	}()
}

func (s *Store) scanKnown() []string {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "(default)" || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.rootDir, name, "arena.conf")); err == nil {
			names = append(names, strings.ToLower(name))
		}
	}
	return names
}

// GlobalStr reads a key from global.conf directly, for the handful of
// server-wide settings (e.g. Arenas:PermanentArenas) that apply before any
// arena-specific handle exists.
func (s *Store) GlobalStr(section, key, def string) string {
	d := s.docFor(s.globalPath)
	if d == nil {
		return def
	}
	if sec, ok := d[section]; ok {
		if v, ok := sec[key]; ok {
			if str, ok := v.(string); ok {
				return str
			}
		}
	}
	return def
}

// Close stops the background watcher.
func (s *Store) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
