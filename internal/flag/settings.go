package flag

import (
	"strconv"
	"strings"

	"github.com/warpzone/server/internal/arena"
)

// CarryMode controls whether a kill transfers the killed player's flags to
// the killer, mirroring the Flag:CarryFlags setting (§4.8). The spec names
// the setting as "enum" without enumerating its values; this is the Open
// Question decision recorded in DESIGN.md.
type CarryMode int

const (
	// CarryNone: flags are never transferred on kill; they are always
	// neuted (using NeutOwned/NeutCenter) and put back on the map by the
	// engine's next Running tick instead.
	CarryNone CarryMode = iota
	// CarryUnlessSafe: flags transfer to the killer, unless the killed
	// player was in a safe zone at the moment of death (then neuted using
	// SafeOwned/SafeCenter).
	CarryUnlessSafe
	// CarryAll: flags always transfer to the killer, safe zone or not.
	CarryAll
)

// Settings is one arena's Flag:* configuration snapshot (§4.8), read once
// when the game is created and held for the lifetime of the arena.
type Settings struct {
	AutoStart    bool
	ResetDelayMS int

	SpawnX, SpawnY int
	SpawnRadius    int
	DropRadius     int

	FriendlyTransfer bool
	Carry            CarryMode

	DropOwnedWeight, DropCenterWeight int
	NeutOwnedWeight, NeutCenterWeight int
	TKOwnedWeight, TKCenterWeight     int
	SafeOwnedWeight, SafeCenterWeight int

	WinDelayMS int

	MinFlags, MaxFlags int

	// ShipFreqChangeLockoutMS is this repo's own addition covering the
	// spec's "not mid-ship/freq-change" TouchFlag precondition, which
	// names the constraint but not its window. Recorded as an Open
	// Question decision in DESIGN.md.
	ShipFreqChangeLockoutMS int64
}

// LoadSettings reads Flag:* keys from cfg (§4.8), clamping FlagCount to
// [0,256] per the spec's explicit invariant.
func LoadSettings(cfg arena.ConfigHandle) Settings {
	s := Settings{
		AutoStart:               cfg.GetInt("Flag", "AutoStart", 1) != 0,
		ResetDelayMS:            cfg.GetInt("Flag", "ResetDelay", 0) * 10,
		SpawnX:                  cfg.GetInt("Flag", "SpawnX", 512),
		SpawnY:                  cfg.GetInt("Flag", "SpawnY", 512),
		SpawnRadius:             cfg.GetInt("Flag", "SpawnRadius", 50),
		DropRadius:              cfg.GetInt("Flag", "DropRadius", 50),
		FriendlyTransfer:        cfg.GetInt("Flag", "FriendlyTransfer", 1) != 0,
		Carry:                   parseCarryMode(cfg.GetStr("Flag", "CarryFlags", "unless-safe")),
		DropOwnedWeight:         cfg.GetInt("Flag", "DropOwned", 0),
		DropCenterWeight:        cfg.GetInt("Flag", "DropCenter", 1),
		NeutOwnedWeight:         cfg.GetInt("Flag", "NeutOwned", 0),
		NeutCenterWeight:        cfg.GetInt("Flag", "NeutCenter", 1),
		TKOwnedWeight:           cfg.GetInt("Flag", "TKOwned", 0),
		TKCenterWeight:          cfg.GetInt("Flag", "TKCenter", 1),
		SafeOwnedWeight:         cfg.GetInt("Flag", "SafeOwned", 1),
		SafeCenterWeight:        cfg.GetInt("Flag", "SafeCenter", 0),
		WinDelayMS:              cfg.GetInt("Flag", "WinDelay", 0) * 10,
		ShipFreqChangeLockoutMS: int64(cfg.GetInt("Flag", "ShipFreqChangeLockoutMS", 2000)),
	}
	s.MinFlags, s.MaxFlags = parseFlagCount(cfg.GetStr("Flag", "FlagCount", "1"))
	return s
}

func parseCarryMode(raw string) CarryMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "never":
		return CarryNone
	case "all", "always":
		return CarryAll
	default:
		return CarryUnlessSafe
	}
}

// parseFlagCount accepts either a plain integer ("3") or a "min-max" range
// ("2-5"), clamping both ends to [0,256] per §4.8's explicit invariant.
func parseFlagCount(raw string) (min, max int) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '-'); i > 0 {
		lo, errLo := strconv.Atoi(strings.TrimSpace(raw[:i]))
		hi, errHi := strconv.Atoi(strings.TrimSpace(raw[i+1:]))
		if errLo == nil && errHi == nil {
			return clamp256(lo), clamp256(hi)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		n = 1
	}
	n = clamp256(n)
	return n, n
}

func clamp256(n int) int {
	if n < 0 {
		return 0
	}
	if n > 256 {
		return 256
	}
	return n
}
