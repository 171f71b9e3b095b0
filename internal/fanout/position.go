// Package fanout implements the C7 position/weapon fan-out: decoding the
// inbound Position packet, deciding per-recipient whether and how to
// relay it, and picking the outbound packet type and transport flags.
//
// The wire layout below is this repo's own fixed-field position packet
// (type/rotation/time/x/y/xvel/yvel/bounty/weapon/status/checksum, plus an
// optional 12-byte energy+extra tail) — not a byte-for-byte reproduction of
// any external protocol, since the spec only constrains packet sizes (20
// or 32 bytes) and the checksum's coverage, not exact field offsets.
package fanout

import "encoding/binary"

const (
	PacketTypePosition byte = 0x28
	PacketTypeWeapon   byte = 0x05
)

const (
	minPacketLen = 20
	maxPacketLen = 32
)

// Status bit flags (byte 18).
const (
	StatusSafezone byte = 1 << iota
	StatusFlash
)

// WeaponType occupies byte 16; byte 17 is level, with the high bit marking
// an "alternate" fire mode (mines: planted bombs/prox bombs).
type WeaponType byte

const (
	WeaponNone WeaponType = iota
	WeaponBullet
	WeaponBounceBullet
	WeaponBomb
	WeaponProxBomb
	WeaponRepel
	WeaponDecoy
	WeaponBurst
	WeaponThor
)

const altFireBit = 0x80

// Packet is a decoded inbound Position packet.
type Packet struct {
	Time        uint32
	X, Y        int16
	XVel, YVel  int16
	Bounty      uint16
	Rotation    byte
	WeaponType  WeaponType
	WeaponLevel byte
	Alternate   bool // mine: planted bomb / prox bomb
	Status      byte
	Energy      uint16
	Extra       []byte // 10 opaque bytes, present only when the packet is 32 bytes
	HasExtra    bool
}

// SentinelDead reports whether (X, Y) is the post-death/pre-respawn
// sentinel position (§4.7).
func (p Packet) SentinelDead() bool { return p.X == -1 && p.Y == -1 }

func (p Packet) IsSafezone() bool { return p.Status&StatusSafezone != 0 }
func (p Packet) IsFlash() bool    { return p.Status&StatusFlash != 0 }

// ChecksumValid reports whether raw's checksum byte (offset 19) matches
// the XOR of bytes [0:19), as required unless the sender is a fake player
// (callers skip this check for fakes per §4.7).
func ChecksumValid(raw []byte) bool {
	if len(raw) < minPacketLen {
		return false
	}
	var x byte
	for _, b := range raw[:19] {
		x ^= b
	}
	return x == raw[19]
}

func checksumOf(raw []byte) byte {
	var x byte
	for _, b := range raw[:19] {
		x ^= b
	}
	return x
}

// Parse decodes a 20- or 32-byte Position packet body (not including any
// outer transport framing).
func Parse(raw []byte) (Packet, bool) {
	if len(raw) != minPacketLen && len(raw) != maxPacketLen {
		return Packet{}, false
	}
	p := Packet{
		Time:        binary.LittleEndian.Uint32(raw[2:6]),
		X:           int16(binary.LittleEndian.Uint16(raw[6:8])),
		Y:           int16(binary.LittleEndian.Uint16(raw[8:10])),
		XVel:        int16(binary.LittleEndian.Uint16(raw[10:12])),
		YVel:        int16(binary.LittleEndian.Uint16(raw[12:14])),
		Bounty:      binary.LittleEndian.Uint16(raw[14:16]),
		Rotation:    raw[1],
		WeaponType:  WeaponType(raw[16]),
		WeaponLevel: raw[17] &^ altFireBit,
		Alternate:   raw[17]&altFireBit != 0,
		Status:      raw[18],
	}
	if len(raw) == maxPacketLen {
		p.HasExtra = true
		p.Energy = binary.LittleEndian.Uint16(raw[20:22])
		p.Extra = append([]byte(nil), raw[22:32]...)
	}
	return p, true
}

// Encode serializes p back into a 20- or 32-byte wire body, writing
// PacketTypePosition or PacketTypeWeapon at byte 0 per typ.
func Encode(p Packet, typ byte) []byte {
	n := minPacketLen
	if p.HasExtra {
		n = maxPacketLen
	}
	raw := make([]byte, n)
	raw[0] = typ
	raw[1] = p.Rotation
	binary.LittleEndian.PutUint32(raw[2:6], p.Time)
	binary.LittleEndian.PutUint16(raw[6:8], uint16(p.X))
	binary.LittleEndian.PutUint16(raw[8:10], uint16(p.Y))
	binary.LittleEndian.PutUint16(raw[10:12], uint16(p.XVel))
	binary.LittleEndian.PutUint16(raw[12:14], uint16(p.YVel))
	binary.LittleEndian.PutUint16(raw[14:16], p.Bounty)
	raw[16] = byte(p.WeaponType)
	lvl := p.WeaponLevel
	if p.Alternate {
		lvl |= altFireBit
	}
	raw[17] = lvl
	raw[18] = p.Status
	raw[19] = checksumOf(raw)
	if p.HasExtra {
		binary.LittleEndian.PutUint16(raw[20:22], p.Energy)
		copy(raw[22:32], p.Extra)
	}
	return raw
}
