package ingress

import (
	"go.uber.org/zap"

	"github.com/warpzone/server/internal/fanout"
	"github.com/warpzone/server/internal/player"
	"github.com/warpzone/server/internal/transport"
	"github.com/warpzone/server/internal/transport/packet"
)

// RegisterGame registers every binary-protocol opcode this core handles
// against reg. Opcodes named by §6 but owned by an out-of-scope
// collaborator (MapRequest/NewsRequest/UpdateRequest: file transfer;
// AttachTo/TurretKickOff/Die/Green: gameplay rules left to pluggable
// modules per the Non-goals) are deliberately left unregistered —
// Registry.Dispatch logs and drops unknown types rather than erroring.
func RegisterGame(reg *transport.Registry, d *Deps) {
	established := []transport.State{transport.StateEstablished}

	reg.Register(packet.CLogin, []transport.State{transport.StateHandshake, transport.StateEstablished}, d.handleLogin)
	reg.Register(packet.CGotoArena, established, d.handleGotoArena)
	reg.Register(packet.CLeaveArena, established, d.handleLeaveArena)
	reg.Register(packet.CPosition, established, d.handlePosition)
	reg.Register(packet.CSetShip, established, d.handleSetShip)
	reg.Register(packet.CSetFreq, established, d.handleSetFreq)
	reg.Register(packet.CSpecRequest, established, d.handleSpecRequest)
	reg.Register(packet.CTouchFlag, established, d.handleTouchFlag)
	reg.Register(packet.CDropFlags, established, d.handleDropFlags)
}

func (d *Deps) handleLogin(sess any, r *packet.Reader) {
	c, ok := sess.(*transport.GameClient)
	if !ok {
		return
	}
	name := r.ReadString()
	password := r.ReadString()

	p := d.Players.New(player.KindStandard)
	c.PlayerID = p.ID
	c.SetState(transport.StateEstablished)
	d.bindGameClient(p.ID, c)

	d.SM.BeginLogin(p, player.AuthRequest{
		Name:     name,
		Password: password,
		IPAddr:   addrOf(c),
	})
}

func addrOf(c *transport.GameClient) string {
	if c.Addr == nil {
		return ""
	}
	return c.Addr.String()
}

func (d *Deps) handleGotoArena(sess any, r *packet.Reader) {
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	name := r.ReadString()
	d.SM.RequestGo(p, name)
}

func (d *Deps) handleLeaveArena(sess any, r *packet.Reader) {
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	d.SM.RequestLeaveArena(p, false)
}

// handlePosition implements §4.7's inbound path directly on the transport
// goroutine: GameListener.Serve is the single reader for every client, so
// ProcessInbound's unsynchronized writes to the sender's position cache
// are already serialized by construction (see game.go's package doc).
func (d *Deps) handlePosition(sess any, r *packet.Reader) {
	c, ok := sess.(*transport.GameClient)
	if !ok {
		return
	}
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	a := p.CurrentArena()
	if a == nil {
		return
	}

	res := d.Fanout.ProcessInbound(p, r.Raw(), c.Fake, d.NowMS(), a.Config)
	if !res.Accept {
		return
	}

	typ := fanout.OutboundType(res.Pkt, p.ID)
	out := fanout.Encode(res.Pkt, typ)

	for _, recipient := range d.playersInArena(a) {
		if recipient.ID == p.ID {
			continue
		}
		send, rec := d.Fanout.Decide(p, recipient, res.Pkt, a.Config, 1920, true, 0)
		if !send {
			continue
		}
		rc, ok := d.gameClientFor(recipient.ID)
		if !ok {
			continue
		}
		d.Game.Send(rc, out, transport.SendFlags{Reliable: rec.Reliable})
	}

	if d.Metrics != nil {
		d.Metrics.FanoutPackets.WithLabelValues(labelForType(typ)).Inc()
	}
}

func labelForType(typ byte) string {
	if typ == fanout.PacketTypeWeapon {
		return "weapon"
	}
	return "position"
}

func (d *Deps) handleSetShip(sess any, r *packet.Reader) {
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	newShip := int(r.ReadByte())
	if !d.SM.CanChangeShip(p) {
		return
	}
	a := p.CurrentArena()
	oldShip, oldFreq := p.Ship, p.Freq
	p.Ship = newShip
	if a != nil {
		broadcastFreqShipChange(d, p, oldShip, oldFreq)
	}
}

func (d *Deps) handleSetFreq(sess any, r *packet.Reader) {
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	newFreq := int(r.ReadUint16())
	if !d.SM.CanChangeFreq(p) {
		return
	}
	oldShip, oldFreq := p.Ship, p.Freq
	p.Freq = newFreq
	broadcastFreqShipChange(d, p, oldShip, oldFreq)
}

func (d *Deps) handleSpecRequest(sess any, r *packet.Reader) {
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	target := r.ReadInt16()
	if target < 0 {
		p.SpecTarget = 0
		return
	}
	p.SpecTarget = int64(target)
}

func (d *Deps) handleTouchFlag(sess any, r *packet.Reader) {
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	a := p.CurrentArena()
	if a == nil {
		return
	}
	flagID := int(r.ReadUint16())
	if !d.Flags.TouchFlag(p, a, flagID) {
		d.Log.Debug("touch flag rejected", zap.Int64("player", p.ID), zap.Int("flag", flagID))
	}
}

func (d *Deps) handleDropFlags(sess any, r *packet.Reader) {
	p, ok := d.playerFor(sess)
	if !ok {
		return
	}
	a := p.CurrentArena()
	if a == nil {
		return
	}
	d.Flags.DropFlags(p, a)
}
