package ingress

import (
	"strconv"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/broker"
	"github.com/warpzone/server/internal/flag"
	"github.com/warpzone/server/internal/player"
	"github.com/warpzone/server/internal/transport"
	"github.com/warpzone/server/internal/transport/packet"
)

// SubscribeBroadcasts wires the broker events C6/C8 already fire (see
// player/events.go, flag/events.go) to outbound wire packets. Grounded on
// the flag package's own event doc comments ("transport subscribes to
// this to broadcast the FlagLocation packet"), which name this exact
// subscriber as their intended consumer.
func SubscribeBroadcasts(d *Deps) {
	broker.RegisterCallback(d.Root, d.onConnect)
	broker.RegisterCallback(d.Root, d.onDisconnect)
	broker.RegisterCallback(d.Root, d.onEnteringArena)
	broker.RegisterCallback(d.Root, d.onFreqShipChange)
	broker.RegisterCallback(d.Root, d.onFlagOnMap)
	broker.RegisterCallback(d.Root, d.onFlagPickup)
	broker.RegisterCallback(d.Root, d.onFlagDrop)
	broker.RegisterCallback(d.Root, d.onFlagReset)
}

func (d *Deps) onConnect(ev player.ConnectEvent) {
	p := ev.Player
	if c, ok := d.gameClientFor(p.ID); ok {
		w := packet.NewWriter(packet.SWhoAmI)
		w.WriteInt32(int32(p.ID))
		d.Game.Send(c, w.Bytes(), transport.SendFlags{Reliable: true})

		resp := packet.NewWriter(packet.SLoginResponse)
		resp.WriteByte(0) // 0 = accepted
		d.Game.Send(c, resp.Bytes(), transport.SendFlags{Reliable: true})
		return
	}
	if c, ok := d.chatClientFor(p.ID); ok {
		c.SendLine("LOGINOK:" + p.Name)
	}
}

func (d *Deps) onDisconnect(ev player.DisconnectEvent) {
	d.unbindPlayer(ev.Player.ID)
}

// onEnteringArena implements §4.6's arena-entry response. p is not yet
// Playing when this fires (the state machine sets that status right after
// firing EnteringArenaEvent), so playersInArena's Playing-status filter
// naturally excludes p from "everyone already here" without an explicit
// self-check.
func (d *Deps) onEnteringArena(ev player.EnteringArenaEvent) {
	p := ev.Player
	others := playingMembers(d, ev.Arena)
	entering := playerEnteringBytes(p)

	// Step 2: relay the entering player to everyone already present —
	// binary PlayerEntering for standard clients, a PLAYER: line for chat.
	for _, other := range others {
		if c, ok := d.gameClientFor(other.ID); ok {
			d.Game.Send(c, entering, transport.SendFlags{Reliable: true})
		} else if c, ok := d.chatClientFor(other.ID); ok {
			c.SendLine(playerLine(p))
		}
	}

	if c, ok := d.gameClientFor(p.ID); ok {
		// Step 3: the entering client gets its own packet plus every
		// existing player's, concatenated into a single reliable burst.
		burst := append([]byte(nil), entering...)
		for _, other := range others {
			burst = append(burst, playerEnteringBytes(other)...)
		}
		d.Game.Send(c, burst, transport.SendFlags{Reliable: true})

		// Step 5: map filename, then the arena-entered marker, then a
		// recorded spawn warp if one was left pending for this player.
		mf := packet.NewWriter(packet.SMapFilename)
		d.Game.Send(c, mf.Bytes(), transport.SendFlags{Reliable: true})

		marker := packet.NewWriter(packet.SEnteringArena)
		d.Game.Send(c, marker.Bytes(), transport.SendFlags{Reliable: true})

		if x, y, ok := p.ConsumePendingSpawn(); ok && x > 0 && x < 1024 && y > 0 && y < 1024 {
			w := packet.NewWriter(packet.SWarpTo)
			w.WriteInt16(x)
			w.WriteInt16(y)
			d.Game.Send(c, w.Bytes(), transport.SendFlags{Reliable: true})
		}
	} else if c, ok := d.chatClientFor(p.ID); ok {
		c.SendLine("INARENA:" + ev.Arena.Name)
		// Step 4: chat clients have no binary burst, so the roster comes
		// as one ENTERING: line per existing player instead.
		for _, other := range others {
			c.SendLine(enteringLine(other))
		}
	}
}

// playingMembers returns every player already Playing in a, for the
// roster burst and chat roster lines §4.6 steps 2-4 send to or about.
func playingMembers(d *Deps, a *arena.Arena) []*player.Player {
	all := d.playersInArena(a)
	out := make([]*player.Player, 0, len(all))
	for _, p := range all {
		if p.CurrentStatus() == player.Playing {
			out = append(out, p)
		}
	}
	return out
}

func playerEnteringBytes(p *player.Player) []byte {
	w := packet.NewWriter(packet.SPlayerEntering)
	w.WriteInt32(int32(p.ID))
	w.WriteString(p.Name)
	w.WriteInt16(int16(p.Ship))
	w.WriteInt16(int16(p.Freq))
	return w.Bytes()
}

func playerLine(p *player.Player) string {
	return "PLAYER:" + p.Name + ":" + strconv.Itoa(p.Ship) + ":" + strconv.Itoa(p.Freq)
}

func enteringLine(p *player.Player) string {
	return "ENTERING:" + p.Name + ":" + strconv.Itoa(p.Ship) + ":" + strconv.Itoa(p.Freq)
}

// onFreqShipChange relays the ShipChange/FreqChange packets to arena
// members whenever FreqShipChangeEvent fires, whether the event came from
// game.go's broadcastFreqShipChange below or from any other collaborator
// (the flag engine records the change time on the same event, for its
// TouchFlag lockout).
func (d *Deps) onFreqShipChange(ev player.FreqShipChangeEvent) {
	a := ev.Player.CurrentArena()
	if a == nil {
		return
	}
	p := ev.Player
	ship := packet.NewWriter(packet.SShipChange)
	ship.WriteInt32(int32(p.ID))
	ship.WriteInt16(int16(p.Ship))
	freq := packet.NewWriter(packet.SFreqChange)
	freq.WriteInt32(int32(p.ID))
	freq.WriteInt16(int16(p.Freq))
	d.broadcastArena(a, ship.Bytes(), 0, false)
	d.broadcastArena(a, freq.Bytes(), 0, false)
}

// broadcastFreqShipChange fires FreqShipChangeEvent, which onFreqShipChange
// above picks up to relay the wire packets (other broker subscribers, such
// as the flag engine's TouchFlag lockout, see the same event).
func broadcastFreqShipChange(d *Deps, p *player.Player, oldShip, oldFreq int) {
	broker.Fire(d.Root, player.FreqShipChangeEvent{Player: p, OldShip: oldShip, OldFreq: oldFreq})
}

func (d *Deps) onFlagOnMap(ev flag.FlagOnMapEvent) {
	w := packet.NewWriter(packet.SFlagLocation)
	w.WriteByte(byte(ev.Flag.ID))
	w.WriteInt16(ev.Flag.X)
	w.WriteInt16(ev.Flag.Y)
	w.WriteInt16(int16(ev.Flag.Freq))
	d.broadcastArena(ev.Arena, w.Bytes(), 0, false)
}

func (d *Deps) onFlagPickup(ev flag.FlagPickupEvent) {
	w := packet.NewWriter(packet.SFlagPickup)
	w.WriteByte(byte(ev.FlagID))
	w.WriteInt32(int32(ev.Player.ID))
	d.broadcastArena(ev.Arena, w.Bytes(), 0, false)
}

func (d *Deps) onFlagDrop(ev flag.FlagDropEvent) {
	w := packet.NewWriter(packet.SFlagDrop)
	w.WriteInt32(int32(ev.Player.ID))
	d.broadcastArena(ev.Arena, w.Bytes(), 0, false)
}

func (d *Deps) onFlagReset(ev flag.FlagGameResetEvent) {
	w := packet.NewWriter(packet.SFlagReset)
	w.WriteInt16(int16(ev.WinnerFreq))
	w.WriteInt32(int32(ev.Points))
	d.broadcastArena(ev.Arena, w.Bytes(), 0, false)
}

// broadcastArena sends data to every game client currently in a, optionally
// skipping one player id (the sender of a just-relayed position packet).
func (d *Deps) broadcastArena(a *arena.Arena, data []byte, skipID int64, reliable bool) {
	for _, p := range d.playersInArena(a) {
		if skipID != 0 && p.ID == skipID {
			continue
		}
		c, ok := d.gameClientFor(p.ID)
		if !ok {
			continue
		}
		d.Game.Send(c, data, transport.SendFlags{Reliable: reliable})
	}
}
