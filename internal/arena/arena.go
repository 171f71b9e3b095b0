// Package arena implements the arena data model and arena manager (spec
// C5): the arena table, the known-arena filesystem index, player-to-arena
// movement, and the arena lifecycle state machine. It is grounded on the
// teacher's ecs.World (entity pool + registry) for the per-arena extra-data
// slots, generalized from a single global world into a table of
// independently-lived arenas.
package arena

import (
	"strings"

	"github.com/warpzone/server/internal/broker"
	"github.com/warpzone/server/internal/extradata"
)

// Status is the arena's single authoritative state variable (§4.4). Writing
// it is what schedules the handler for the new state on the next mainloop
// tick; see Manager.SetStatus.
type Status int

const (
	DoInit0 Status = iota
	WaitHolds0
	DoInit1
	WaitHolds1
	DoInit2
	WaitSync1
	Running
	Closing
	DoWriteData
	WaitSync2
	DoDestroy1
	WaitHolds2
	DoDestroy2
)

func (s Status) String() string {
	switch s {
	case DoInit0:
		return "DoInit0"
	case WaitHolds0:
		return "WaitHolds0"
	case DoInit1:
		return "DoInit1"
	case WaitHolds1:
		return "WaitHolds1"
	case DoInit2:
		return "DoInit2"
	case WaitSync1:
		return "WaitSync1"
	case Running:
		return "Running"
	case Closing:
		return "Closing"
	case DoWriteData:
		return "DoWriteData"
	case WaitSync2:
		return "WaitSync2"
	case DoDestroy1:
		return "DoDestroy1"
	case WaitHolds2:
		return "WaitHolds2"
	case DoDestroy2:
		return "DoDestroy2"
	default:
		return "Unknown"
	}
}

// InDestroyHalf reports whether s is one of the states CompleteGo treats as
// "still tearing down, but eligible for resurrection" (DoWriteData..DoDestroy2).
func (s Status) InDestroyHalf() bool {
	return s >= DoWriteData && s <= DoDestroy2
}

// ConfigHandle is the contract the arena manager expects from the
// (out-of-scope) configuration-file store: read by section/key, with
// fallback through the arena-specific → base-name → global hierarchy.
type ConfigHandle interface {
	GetStr(section, key, def string) string
	GetInt(section, key string, def int) int
	// Close releases the handle (and, for the root handles in the
	// hierarchy, does nothing — only the arena-specific layer owns the fd).
	Close()
}

// Arena is one game-world instance.
type Arena struct {
	Name        string // canonical: lowercase ASCII letters/digits, optional leading '#'
	BaseName    string // Name with trailing digits stripped
	Config      ConfigHandle
	Status      Status
	SpecFreq    int
	KeepAlive   bool // permanent arenas are never reaped
	Resurrect   bool // DoDestroy2 reinitializes to DoInit0 instead of removing

	Scope *broker.Scope // this arena's broker scope, child of the root

	holds int // valid to mutate only in WaitHolds0/1/2

	extra *extradata.Registry
	key   extradata.Key

	players map[int64]struct{} // player ids currently in this arena (for reap scan / population)
}

func newArena(name string, scope *broker.Scope, key extradata.Key) *Arena {
	return &Arena{
		Name:     name,
		BaseName: BaseName(name),
		Status:   DoInit0,
		Scope:    scope,
		extra:    extradata.NewRegistry(),
		key:      key,
		players:  make(map[int64]struct{}),
	}
}

// ExtraData returns the registry backing this arena's typed extra-data
// slots (spec: "typed extra-data slots including the arena-private broker
// state").
func (a *Arena) ExtraData() *extradata.Registry { return a.extra }

// Holds returns the current hold counter. Only meaningful in WaitHolds*.
func (a *Arena) Holds() int { return a.holds }

func (a *Arena) playerCount() int { return len(a.players) }

// BaseName strips trailing ASCII digits from name, per "base-name (name
// with trailing digits stripped, used to select config)".
func BaseName(name string) string {
	end := len(name)
	for end > 0 && name[end-1] >= '0' && name[end-1] <= '9' {
		end--
	}
	if end == 0 {
		return name
	}
	return name[:end]
}

// SanitizeName implements §4.4 CompleteGo's name sanitization and the
// testable property "arena sanitization produces only lowercase ASCII
// alphanumeric plus optional leading '#', max 16 bytes, never empty" (and
// idempotence): first character must be ASCII letter/digit (leading '#'
// permitted as a private marker), other characters must be ASCII
// alphanumeric with non-alphanumeric replaced by 'x', result lowercased.
// An empty result is the caller's cue to consult the placement advisor.
func SanitizeName(raw string) string {
	if raw == "" {
		return ""
	}
	const maxLen = 16
	if len(raw) > maxLen {
		raw = raw[:maxLen]
	}
	b := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if i == 0 {
			if c == '#' || isAlnum(c) {
				b = append(b, c)
				continue
			}
			// First char is neither '#' nor alnum: treat as already empty;
			// caller falls back to placement advisor / "0".
			return ""
		}
		if isAlnum(c) {
			b = append(b, c)
		} else {
			b = append(b, 'x')
		}
	}
	return strings.ToLower(string(b))
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
