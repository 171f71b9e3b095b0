package fanout

import (
	"math"
	"math/rand"

	"github.com/warpzone/server/internal/player"
)

const shipSpectator = 8

// thorRange is fixed per §4.7 (not configurable, unlike bullet/weapon
// pixel ranges).
const thorRange = 30000

// Config is the subset of arena.ConfigHandle the fan-out engine reads.
// Declared locally (rather than importing package arena) since fanout only
// needs read access to a handful of keys, not the arena lifecycle.
type Config interface {
	GetInt(section, key string, def int) int
	GetStr(section, key, def string) string
}

// RegionPolicy reports whether a position falls inside an arena's
// weapon- or antiwarp-suppressing region. Optional: a nil RegionPolicy
// suppresses nothing. No concrete region/.lvl source is wired in this
// core — region parsing belongs to the map-download collaborator §4.6
// already carves out of scope — but the hook is real and arena modules
// may register one through SetRegionPolicy.
type RegionPolicy interface {
	SuppressWeapons(x, y int16) bool
	SuppressAntiwarp(x, y int16) bool
}

// PositionUpdatedEvent is the event type for region-aware position updates
// (a sender's position at most once every Misc:RegionCheckInterval ms).
// The fan-out engine does not fire it, and nothing in this repository
// subscribes to it.
type PositionUpdatedEvent struct {
	Player *player.Player
	X, Y   int16
}

// Recipient describes how to send one outbound packet copy.
type Recipient struct {
	Player        *player.Player
	Reliable      bool
	IncludeEnergy bool
	IncludeExtra  bool
}

// Engine computes inbound-packet validity and per-recipient fan-out
// decisions. It holds no per-arena state itself — all mutable state lives
// on the sending Player (LastX/LastY/.../SentWeaponPacket) — so one Engine
// serves every arena.
type Engine struct {
	rng     *rand.Rand
	regions RegionPolicy
}

func NewEngine(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// SetRegionPolicy installs the collaborator consulted for per-region
// weapon/antiwarp suppression (§4.7). Passing nil disables suppression.
func (e *Engine) SetRegionPolicy(p RegionPolicy) {
	e.regions = p
}

// AcceptResult is what ProcessInbound decides about one packet from sender.
type AcceptResult struct {
	Accept     bool
	Pkt        Packet
	RegionTick bool // true if this packet crossed the RegionCheckInterval gate
}

// ProcessInbound validates raw (checksum, unless fake), drops the
// post-death sentinel and stale non-weapon packets, updates sender's
// position cache, and reports whether the packet should be fanned out at
// all (§4.7). isFake skips the checksum requirement.
func (e *Engine) ProcessInbound(sender *player.Player, raw []byte, isFake bool, nowMS int64, cfg Config) AcceptResult {
	if !isFake && !ChecksumValid(raw) {
		return AcceptResult{}
	}
	pkt, ok := Parse(raw)
	if !ok {
		return AcceptResult{}
	}
	if pkt.SentinelDead() {
		sender.LastX, sender.LastY, sender.LastTime = pkt.X, pkt.Y, pkt.Time
		return AcceptResult{}
	}

	hasWeapon := pkt.WeaponType != WeaponNone
	if hasWeapon {
		sender.SentWeaponPacket = true
		sender.DeathsWithoutFiring = 0
		if e.suppressWeapon(sender, pkt, cfg) {
			pkt.WeaponType = WeaponNone
		}
	} else if pkt.Time <= sender.LastTime && !isFake {
		return AcceptResult{}
	}

	regionTick := false
	interval := int64(cfg.GetInt("Misc", "RegionCheckInterval", 250))
	if nowMS-sender.LastRegionCheckMS >= interval {
		sender.LastRegionCheckMS = nowMS
		regionTick = true
	}

	sender.LastX, sender.LastY, sender.LastTime = pkt.X, pkt.Y, pkt.Time
	sender.InSafezone = pkt.IsSafezone()

	if sender.Ship == shipSpectator {
		// Spectators update their own cached state but never fan out.
		return AcceptResult{Pkt: pkt, RegionTick: regionTick}
	}
	return AcceptResult{Accept: true, Pkt: pkt, RegionTick: regionTick}
}

// OutboundType picks the wire packet type for pkt per §4.7: a weapon
// packet whenever a real weapon is present, bounty exceeds 255, or the
// sender's id exceeds 255; a position packet otherwise.
func OutboundType(pkt Packet, senderID int64) byte {
	if pkt.WeaponType != WeaponNone || pkt.Bounty > 255 || senderID > 255 {
		return PacketTypeWeapon
	}
	return PacketTypePosition
}

// weaponRange returns the base send-range for pkt's weapon type, falling
// back to the non-weapon "resolution sum" default when there is none.
func weaponRange(pkt Packet, cfg Config, recipientRes int) int {
	switch pkt.WeaponType {
	case WeaponNone:
		return recipientRes
	case WeaponBullet:
		return cfg.GetInt("Net", "BulletPixels", 1500)
	case WeaponThor:
		return thorRange
	default:
		return cfg.GetInt("Net", "WeaponPixels", 2000)
	}
}

func dist(ax, ay, bx, by int16) float64 {
	dx := float64(ax) - float64(bx)
	dy := float64(ay) - float64(by)
	return math.Sqrt(dx*dx + dy*dy)
}

// isMine reports whether pkt is a bomb/prox-bomb in its "alternate" (mine)
// fire mode, which always sends to everyone regardless of range.
func isMine(pkt Packet) bool {
	return pkt.Alternate && (pkt.WeaponType == WeaponBomb || pkt.WeaponType == WeaponProxBomb)
}

// suppressWeapon reports whether pkt's weapon field should be zeroed
// before fan-out (§4.7: "Apply weapon-ignore probability and per-region
// weapon/antiwarp suppression to the outgoing weapon field"). This never
// touches sender.SentWeaponPacket/DeathsWithoutFiring bookkeeping, which
// reflects that a weapon was actually fired regardless of whether it ends
// up broadcast.
func (e *Engine) suppressWeapon(sender *player.Player, pkt Packet, cfg Config) bool {
	if pct := cfg.GetInt("Net", "WeaponIgnorePercent", 0); pct > 0 && e.rng.Intn(100) < pct {
		return true
	}
	if e.regions == nil {
		return false
	}
	if e.regions.SuppressWeapons(pkt.X, pkt.Y) {
		return true
	}
	return sender.Antiwarp && e.regions.SuppressAntiwarp(pkt.X, pkt.Y)
}

// includeEnergy implements §4.7's SeeEnergy policy: All includes energy
// for everyone, Team only for recipients on sender's frequency, Spec only
// for recipients currently spectating sender; any other value (including
// the default "None") omits it.
func includeEnergy(sender, recipient *player.Player, cfg Config) bool {
	switch cfg.GetStr("Misc", "SeeEnergy", "None") {
	case "All":
		return true
	case "Team":
		return recipient.Freq == sender.Freq
	case "Spec":
		return recipient.SpecTarget == sender.ID
	default:
		return false
	}
}

// Decide evaluates every §4.7 send condition for one (sender, recipient)
// pair and reports whether/how to relay. recipientResolution is the
// recipient's screen-resolution-derived default range for non-weapon
// packets (arena policy input the caller already has).
func (e *Engine) Decide(sender, recipient *player.Player, pkt Packet, cfg Config, recipientResolution int, specSeeExtra bool, antiwarpPercent int) (send bool, rec Recipient) {
	if recipient == sender || recipient.Ship == shipSpectator {
		return e.decideForSpectatorOrSelf(sender, recipient, pkt, cfg, specSeeExtra)
	}

	d := dist(sender.LastX, sender.LastY, recipient.LastX, recipient.LastY)
	rng := weaponRange(pkt, cfg, recipientResolution)
	energy := includeEnergy(sender, recipient, cfg)

	switch {
	case pkt.IsSafezone() || pkt.IsFlash():
		return true, Recipient{Player: recipient, Reliable: true, IncludeEnergy: energy}
	case d <= float64(rng):
		return true, Recipient{Player: recipient, IncludeEnergy: energy}
	case isMine(pkt):
		return true, Recipient{Player: recipient, IncludeEnergy: energy}
	case sender.Antiwarp && antiwarpPercent > 0 && e.rng.Intn(100) < antiwarpPercent:
		return true, Recipient{Player: recipient, IncludeEnergy: energy}
	case recipient.SpecTarget == sender.ID || recipient.AttachedTo == sender.ID:
		return true, Recipient{Player: recipient, IncludeEnergy: energy}
	case d <= 8000 && e.rng.Float64() < 1-d/8000:
		return true, Recipient{Player: recipient, IncludeEnergy: energy}
	default:
		return false, Recipient{}
	}
}

// decideForSpectatorOrSelf handles spectator recipients: always sent (so
// spectators see everyone), with the extra-position-data tail included
// only when they are specifically watching sender and arena policy allows
// it.
func (e *Engine) decideForSpectatorOrSelf(sender, recipient *player.Player, pkt Packet, cfg Config, specSeeExtra bool) (bool, Recipient) {
	watching := recipient.SpecTarget == sender.ID
	return true, Recipient{
		Player:        recipient,
		IncludeExtra:  watching && specSeeExtra && pkt.HasExtra,
		IncludeEnergy: includeEnergy(sender, recipient, cfg),
	}
}
