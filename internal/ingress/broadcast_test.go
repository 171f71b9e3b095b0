package ingress

import (
	"testing"

	"github.com/warpzone/server/internal/broker"
	"github.com/warpzone/server/internal/player"
	"github.com/warpzone/server/internal/transport"
)

// enterArenaWithBoundClient is playingPlayer, but binds the game client
// before driving login/arena-entry so onEnteringArena's roster-burst/warp
// branch actually runs against a real (if Addr-less) GameClient.
func enterArenaWithBoundClient(t *testing.T, ts *testSetup, name, arenaName string) (*player.Player, *transport.GameClient) {
	t.Helper()
	p := ts.players.New(player.KindStandard)
	c := boundGameClient(ts, p)
	ts.sm.BeginLogin(p, player.AuthRequest{Name: name, Password: "x"})
	settle(t, ts.sm, p)
	ts.sm.RequestGo(p, arenaName)
	settle(t, ts.sm, p)
	if p.CurrentStatus() != player.Playing {
		t.Fatalf("setup: expected Playing, got %v", p.CurrentStatus())
	}
	return p, c
}

func TestSubscribeBroadcastsDoesNotPanicWithoutBoundTransport(t *testing.T) {
	ts := newTestSetup(t)
	SubscribeBroadcasts(ts.deps)

	p := ts.playingPlayer(t, "gina", "test")

	// None of these events should panic even though p has no game/chat
	// client bound: onConnect/onEnteringArena/onFreqShipChange all fall
	// through their gameClientFor/chatClientFor lookups to a no-op.
	broker.Fire(ts.root, player.ConnectEvent{Player: p})
	broker.Fire(ts.root, player.FreqShipChangeEvent{Player: p, OldShip: 0, OldFreq: 0})
}

func TestOnDisconnectUnbindsPlayer(t *testing.T) {
	ts := newTestSetup(t)
	SubscribeBroadcasts(ts.deps)

	p := ts.playingPlayer(t, "henry", "test")
	c := boundGameClient(ts, p)

	if _, ok := ts.deps.gameClientFor(p.ID); !ok {
		t.Fatal("setup: expected client to be bound")
	}

	broker.Fire(ts.root, player.DisconnectEvent{Player: p})

	if _, ok := ts.deps.gameClientFor(p.ID); ok {
		t.Error("expected onDisconnect to unbind the player's game client")
	}
	_ = c
}

func TestOnEnteringArenaConsumesPendingSpawnForBoundClient(t *testing.T) {
	ts := newTestSetup(t)
	SubscribeBroadcasts(ts.deps)

	existing, _ := enterArenaWithBoundClient(t, ts, "ann", "test")

	newcomer := ts.players.New(player.KindStandard)
	boundGameClient(ts, newcomer)
	newcomer.SetPendingSpawn(100, 200)

	ts.sm.BeginLogin(newcomer, player.AuthRequest{Name: "bob", Password: "x"})
	settle(t, ts.sm, newcomer)
	ts.sm.RequestGo(newcomer, "test")
	settle(t, ts.sm, newcomer)

	if newcomer.HasPendingSpawn {
		t.Error("expected the recorded spawn to be consumed on arena entry")
	}
	if existing.CurrentStatus() != player.Playing {
		t.Fatalf("setup: expected existing player still Playing, got %v", existing.CurrentStatus())
	}
}

func TestOnEnteringArenaWithoutPendingSpawnDoesNotPanic(t *testing.T) {
	ts := newTestSetup(t)
	SubscribeBroadcasts(ts.deps)

	_, _ = enterArenaWithBoundClient(t, ts, "carl", "test")
}

func TestPlayingMembersExcludesNonPlayingStatuses(t *testing.T) {
	ts := newTestSetup(t)
	playing := ts.playingPlayer(t, "ivy", "test")

	notPlaying := ts.players.New(player.KindStandard)
	notPlaying.Arena = playing.CurrentArena()

	got := playingMembers(ts.deps, playing.CurrentArena())
	if len(got) != 1 || got[0] != playing {
		t.Fatalf("playingMembers = %v, want just the Playing player", got)
	}
}

func TestPlayerLineFormatsNameShipFreq(t *testing.T) {
	p := &player.Player{Name: "zoe", Ship: 2, Freq: 5}
	if got := playerLine(p); got != "PLAYER:zoe:2:5" {
		t.Errorf("playerLine = %q, want %q", got, "PLAYER:zoe:2:5")
	}
}

func TestEnteringLineFormatsNameShipFreq(t *testing.T) {
	p := &player.Player{Name: "zoe", Ship: 2, Freq: 5}
	if got := enteringLine(p); got != "ENTERING:zoe:2:5" {
		t.Errorf("enteringLine = %q, want %q", got, "ENTERING:zoe:2:5")
	}
}

func TestOnFreqShipChangeSkipsPlayersOutsideAnArena(t *testing.T) {
	ts := newTestSetup(t)
	SubscribeBroadcasts(ts.deps)

	p := ts.players.New(player.KindStandard)
	// p.Arena is nil (never entered one): onFreqShipChange must return
	// before touching d.Game, which is nil in this test setup.
	broker.Fire(ts.root, player.FreqShipChangeEvent{Player: p, OldShip: 0, OldFreq: 0})
}
