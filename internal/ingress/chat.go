package ingress

import (
	"strings"

	"github.com/warpzone/server/internal/player"
	"github.com/warpzone/server/internal/transport"
)

// RegisterChat wires the line-based chat protocol's LOGIN/GO/LEAVE subset
// (§6) into onLine/onClose callbacks for transport.NewChatListener. General
// command parsing and chat message routing beyond this subset is out of
// scope (§1 Non-goals) — lines that aren't one of these three are dropped.
func RegisterChat(d *Deps) func(c *transport.ChatClient, line string) {
	return func(c *transport.ChatClient, line string) {
		switch {
		case strings.HasPrefix(line, "LOGIN:"):
			d.handleChatLogin(c, strings.TrimPrefix(line, "LOGIN:"))
		case strings.HasPrefix(line, "GO:"):
			d.handleChatGo(c, strings.TrimPrefix(line, "GO:"))
		case line == "LEAVE":
			d.handleChatLeave(c)
		}
	}
}

// OnChatClose returns the onClose callback for transport.NewChatListener:
// a dropped TCP connection drives the same disconnect path a binary
// client's socket error would.
func OnChatClose(d *Deps) func(c *transport.ChatClient) {
	return func(c *transport.ChatClient) {
		if c.PlayerID == 0 {
			return
		}
		p, ok := d.Players.ByID(c.PlayerID)
		if !ok {
			return
		}
		d.SM.Disconnect(p)
	}
}

func (d *Deps) handleChatLogin(c *transport.ChatClient, rest string) {
	name, password, ok := strings.Cut(rest, ":")
	if !ok {
		name, password = rest, ""
	}
	p := d.Players.New(player.KindChat)
	c.PlayerID = p.ID
	d.bindChatClient(p.ID, c)
	d.SM.BeginLogin(p, player.AuthRequest{Name: name, Password: password})
}

func (d *Deps) handleChatGo(c *transport.ChatClient, arenaName string) {
	p, ok := d.Players.ByID(c.PlayerID)
	if !ok {
		return
	}
	d.SM.RequestGo(p, arenaName)
}

func (d *Deps) handleChatLeave(c *transport.ChatClient) {
	p, ok := d.Players.ByID(c.PlayerID)
	if !ok {
		return
	}
	d.SM.RequestLeaveArena(p, false)
}
