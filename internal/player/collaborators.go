package player

import "github.com/warpzone/server/internal/arena"

// AuthRequest carries what the client supplied during login (§4.9 / C9)
// through to whichever IAuth implementation is configured.
type AuthRequest struct {
	Name     string
	Password string
	IPAddr   string
}

// AuthResult is what the auth collaborator calls back with.
type AuthResult struct {
	OK           bool
	Name         string // canonicalized, possibly renamed-for-uniqueness
	AllowUnknown bool
}

// AuthProvider is the C9 auth-file adapter's contract, called from
// NeedAuth. done may run on any goroutine; the state machine always posts
// the continuation back onto the mainloop.
type AuthProvider interface {
	Authenticate(req AuthRequest, done func(AuthResult))
}

// GlobalSync is the persistence collaborator's contract for player data
// that is scoped to the whole zone rather than one arena (profile, score
// totals, global flags).
type GlobalSync interface {
	RequestPlayerGlobalLoad(p *Player, done func())
	RequestPlayerGlobalSave(p *Player, done func())
}

// ArenaSync is the persistence collaborator's contract for player data
// scoped to a single arena (per-arena score, inventory, etc).
type ArenaSync interface {
	RequestPlayerArenaLoad(p *Player, a *arena.Arena, done func())
	RequestPlayerArenaSave(p *Player, a *arena.Arena, done func())
}

// FreqManager is the "IFreqManager" advisor consulted by DoFreqAndArenaSync
// for a player's initial freq/ship assignment, and by the ship/freq-change
// handlers for rate-limit enforcement. A nil FreqManager on the state
// machine means every player starts at freq 0 / spectator and no rate
// limit is enforced — matching an arena with no freq-manager module
// attached.
type FreqManager interface {
	// InitialFreq picks the freq (and ship, normally spectator) p starts
	// in on entering a. ok=false means "use the default": p stays on the
	// arena's spectator freq (Team:SpectatorFrequency) in the spectator ship.
	InitialFreq(a *arena.Arena, p *Player) (freq, ship int, ok bool)
	// CanChangeShip reports whether p may switch ships right now, and
	// records the attempt for the decay counter regardless of outcome.
	CanChangeShip(p *Player) bool
	// CanChangeFreq reports whether p may switch freqs right now, and
	// records the attempt for the decay counter regardless of outcome.
	CanChangeFreq(p *Player) bool
}

// Mainloop is the subset of package mainloop the state machine needs.
// Declared locally, mirroring arena.Mainloop, to avoid a dependency on the
// concrete mainloop package from this one's tests.
type Mainloop interface {
	QueueMainWork(fn func())
	SetTimer(key string, initialMS, intervalMS int, fn func())
}
