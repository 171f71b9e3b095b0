// Package ingress wires the wire protocol (internal/transport) to the
// gameplay collaborators (C5-C9): decoding inbound packets, calling the
// player state machine / fan-out engine / flag engine, and relaying
// outbound packets back out over the transport listeners. None of this is
// itself specified by the core (the spec's C6/C7/C8 sections describe the
// handler *logic*, not how it is reached from a socket) — it is the glue
// a concrete deployment needs, grounded on the teacher's handler.Deps +
// handler.RegisterAll shape (one struct of collaborators, one function
// that registers every opcode against a packet.Registry).
package ingress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/broker"
	"github.com/warpzone/server/internal/fanout"
	"github.com/warpzone/server/internal/flag"
	"github.com/warpzone/server/internal/player"
	"github.com/warpzone/server/internal/telemetry"
	"github.com/warpzone/server/internal/transport"
)

// Deps bundles every collaborator a handler needs, mirroring the teacher's
// handler.Deps aggregate passed to every opcode handler instead of a long
// individual-argument list.
type Deps struct {
	Log     *zap.Logger
	Root    *broker.Scope
	Players *player.Registry
	SM      *player.StateMachine
	Arenas  *arena.Manager
	Fanout  *fanout.Engine
	Flags   *flag.Engine
	Game    *transport.GameListener
	Chat    *transport.ChatListener
	Metrics *telemetry.Metrics
	NowMS   func() int64

	mu       sync.RWMutex
	gameByID map[int64]*transport.GameClient
	chatByID map[int64]*transport.ChatClient
}

func NewDeps(log *zap.Logger, root *broker.Scope, players *player.Registry, sm *player.StateMachine, arenas *arena.Manager, fo *fanout.Engine, flags *flag.Engine, game *transport.GameListener, chat *transport.ChatListener, metrics *telemetry.Metrics, nowMS func() int64) *Deps {
	return &Deps{
		Log: log, Root: root, Players: players, SM: sm, Arenas: arenas, Fanout: fo, Flags: flags,
		Game: game, Chat: chat, Metrics: metrics, NowMS: nowMS,
		gameByID: make(map[int64]*transport.GameClient),
		chatByID: make(map[int64]*transport.ChatClient),
	}
}

func (d *Deps) bindGameClient(id int64, c *transport.GameClient) {
	d.mu.Lock()
	d.gameByID[id] = c
	d.mu.Unlock()
}

func (d *Deps) bindChatClient(id int64, c *transport.ChatClient) {
	d.mu.Lock()
	d.chatByID[id] = c
	d.mu.Unlock()
}

func (d *Deps) unbindPlayer(id int64) {
	d.mu.Lock()
	delete(d.gameByID, id)
	delete(d.chatByID, id)
	d.mu.Unlock()
}

func (d *Deps) gameClientFor(id int64) (*transport.GameClient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.gameByID[id]
	return c, ok
}

func (d *Deps) chatClientFor(id int64) (*transport.ChatClient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.chatByID[id]
	return c, ok
}

// playersInArena returns every player currently in a (fake players
// included), for
// broadcast fan-out. A linear scan of the whole registry is acceptable at
// this core's scale (hundreds, not tens of thousands, of concurrent
// players per zone); nothing here maintains a denormalized per-arena
// index.
func (d *Deps) playersInArena(a *arena.Arena) []*player.Player {
	all := d.Players.All()
	out := make([]*player.Player, 0, len(all))
	for _, p := range all {
		if p.CurrentArena() == a {
			out = append(out, p)
		}
	}
	return out
}

func (d *Deps) playerFor(sess any) (*player.Player, bool) {
	switch c := sess.(type) {
	case *transport.GameClient:
		if c.PlayerID == 0 {
			return nil, false
		}
		return d.Players.ByID(c.PlayerID)
	case *transport.ChatClient:
		if c.PlayerID == 0 {
			return nil, false
		}
		return d.Players.ByID(c.PlayerID)
	default:
		return nil, false
	}
}
