package transport

import (
	"fmt"

	"github.com/warpzone/server/internal/transport/packet"
	"go.uber.org/zap"
)

// State is the transport-level connection phase, coarser than the player
// state machine's own Status (C6) — it only gates which wire packet types
// are acceptable before a session has logged in at all.
type State int

const (
	StateHandshake State = iota
	StateEstablished
)

// HandlerFunc handles one decoded inbound packet. sess is passed as `any`
// to avoid this package depending on *GameClient/*ChatClient concretely,
// matching the teacher's net/packet.Registry HandlerFunc shape.
type HandlerFunc func(sess any, r *packet.Reader)

type handlerEntry struct {
	fn      HandlerFunc
	allowed map[State]bool
}

// Registry maps inbound packet types to handlers with state-gated dispatch
// and panic recovery, so one malformed packet cannot take down the
// process. Grounded on the teacher's internal/net/packet.Registry.
type Registry struct {
	handlers map[byte]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{handlers: make(map[byte]*handlerEntry), log: log}
}

func (reg *Registry) Register(typ byte, states []State, fn HandlerFunc) {
	allowed := make(map[State]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[typ] = &handlerEntry{fn: fn, allowed: allowed}
}

// Dispatch looks up data[0]'s handler, checks it against state, and
// invokes it with panic recovery. Unknown types are silently ignored
// (§7's malicious/garbage packets are dropped, not logged as errors,
// unless a handler itself flags something worse).
func (reg *Registry) Dispatch(sess any, state State, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet")
	}
	typ := data[0]
	entry, ok := reg.handlers[typ]
	if !ok {
		reg.log.Debug("unknown packet type", zap.Uint8("type", typ))
		return nil
	}
	if !entry.allowed[state] {
		reg.log.Warn("packet type not allowed in this state", zap.Uint8("type", typ))
		return nil
	}
	return reg.safeCall(entry.fn, sess, packet.NewReader(data), typ)
}

func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *packet.Reader, typ byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered", zap.Uint8("type", typ), zap.Any("panic", rec))
			err = fmt.Errorf("handler panic for type %d: %v", typ, rec)
		}
	}()
	fn(sess, r)
	return nil
}
