package player

import "github.com/warpzone/server/internal/arena"

// Connect/disconnect and arena-membership callbacks fired through the
// broker (C1), mirroring arena's PreCreate/Create/Destroy event shapes.
type ConnectEvent struct{ Player *Player }
type DisconnectEvent struct{ Player *Player }

// PreEnterArenaEvent fires at the start of DoFreqAndArenaSync, right after
// ship/freq are cleared and before the freq manager is consulted or the
// arena-scoped persistence load is requested (§ DoFreqAndArenaSync).
type PreEnterArenaEvent struct {
	Player *Player
	Arena  *arena.Arena
}

// EnteringArenaEvent fires once a player's arena sync has completed and the
// arena-response packets are about to go out (§4.6).
type EnteringArenaEvent struct {
	Player *Player
	Arena  *arena.Arena
}

// LeavingArenaEvent fires when a player starts leaving an arena, before the
// arena-scoped persistence save is requested.
type LeavingArenaEvent struct {
	Player *Player
	Arena  *arena.Arena
}

// FreqShipChangeEvent fires whenever a player's ship or freq assignment
// changes (used by the flag engine and the fan-out layer).
type FreqShipChangeEvent struct {
	Player       *Player
	OldShip      int
	OldFreq      int
}
