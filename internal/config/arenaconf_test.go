package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/warpzone/server/internal/broker"
	"go.uber.org/zap"
)

func writeConf(t *testing.T, dir, name, body string) {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestStore(t *testing.T, root string) *Store {
	t.Helper()
	return NewStore(root, broker.NewRoot(), zap.NewNop())
}

func TestOpenFallsBackThroughHierarchy(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, "global.conf", "[Team]\nSpectatorFrequency = 8025\n")
	writeConf(t, root, "turf/arena.conf", "[Flag]\nResetDelay = 500\n")
	writeConf(t, root, "turf2/arena.conf", "[Flag]\nResetDelay = 900\n")

	s := newTestStore(t, root)

	h, err := s.Open("turf2", "turf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// arena-specific layer wins over base-name layer.
	if got := h.GetInt("Flag", "ResetDelay", -1); got != 900 {
		t.Errorf("ResetDelay = %d, want 900 (arena-specific)", got)
	}
	// global layer still reachable when neither closer layer has the key.
	if got := h.GetInt("Team", "SpectatorFrequency", -1); got != 8025 {
		t.Errorf("SpectatorFrequency = %d, want 8025 (from global)", got)
	}
}

func TestOpenUsesBaseNameWhenArenaSpecificMissing(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, "turf/arena.conf", "[Flag]\nResetDelay = 500\n")

	s := newTestStore(t, root)

	// "turf2" has no arena.conf of its own; falls back to base name "turf".
	h, err := s.Open("turf2", "turf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := h.GetInt("Flag", "ResetDelay", -1); got != 500 {
		t.Errorf("ResetDelay = %d, want 500 (from base name)", got)
	}
}

func TestOpenErrorsWhenNoLayerExists(t *testing.T) {
	root := t.TempDir()
	s := newTestStore(t, root)

	if _, err := s.Open("nowhere", "nowhere"); err == nil {
		t.Fatal("Open with no arena/base/global layer should error")
	}
}

func TestGetStrAndGetIntDefaults(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, "global.conf", "[General]\nNewsFile = \"news.txt\"\n")
	s := newTestStore(t, root)

	h, err := s.Open("x", "x")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := h.GetStr("General", "NewsFile", "default.txt"); got != "news.txt" {
		t.Errorf("GetStr = %q, want %q", got, "news.txt")
	}
	if got := h.GetStr("General", "Missing", "default.txt"); got != "default.txt" {
		t.Errorf("GetStr for missing key = %q, want default %q", got, "default.txt")
	}
	if got := h.GetInt("General", "Missing", 42); got != 42 {
		t.Errorf("GetInt for missing key = %d, want default 42", got)
	}
}

func TestGlobalStrReadsGlobalConfDirectly(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, "global.conf", "[Arenas]\nPermanentArenas = \"turf, 0\"\n")

	s := newTestStore(t, root)
	if got := s.GlobalStr("Arenas", "PermanentArenas", ""); got != "turf, 0" {
		t.Errorf("GlobalStr = %q, want %q", got, "turf, 0")
	}
	if got := s.GlobalStr("Arenas", "Missing", "fallback"); got != "fallback" {
		t.Errorf("GlobalStr for missing key = %q, want default %q", got, "fallback")
	}
}

func TestGlobalStrMissingFileReturnsDefault(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	if got := s.GlobalStr("Arenas", "PermanentArenas", ""); got != "" {
		t.Errorf("GlobalStr with no global.conf = %q, want empty default", got)
	}
}

func TestScanKnownIgnoresDefaultAndDotfiles(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, "turf/arena.conf", "")
	writeConf(t, root, "(default)/arena.conf", "")
	writeConf(t, root, ".hidden/arena.conf", "")
	// A directory with no arena.conf is not "known".
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t, root)
	names := s.scanKnown()

	if len(names) != 1 || names[0] != "turf" {
		t.Errorf("scanKnown() = %v, want [turf]", names)
	}
}
