package persist

import "testing"

// Sync's arena-blob cache (ArenaBlob/SetArenaBlob) is plain in-memory
// bookkeeping independent of the DB-backed repos, so it's exercised here
// without a live Postgres connection.
func TestSyncArenaBlobRoundTrip(t *testing.T) {
	s := &Sync{arenaBlobs: make(map[string][]byte)}

	if got := s.ArenaBlob("test"); got != nil {
		t.Fatalf("ArenaBlob on empty cache = %v, want nil", got)
	}

	s.SetArenaBlob("test", []byte("encoded-state"))
	if got := string(s.ArenaBlob("test")); got != "encoded-state" {
		t.Errorf("ArenaBlob(%q) = %q, want %q", "test", got, "encoded-state")
	}

	s.SetArenaBlob("test", []byte("updated-state"))
	if got := string(s.ArenaBlob("test")); got != "updated-state" {
		t.Errorf("ArenaBlob after overwrite = %q, want %q", got, "updated-state")
	}

	if got := s.ArenaBlob("other"); got != nil {
		t.Errorf("ArenaBlob(%q) on untouched key = %v, want nil", "other", got)
	}
}
