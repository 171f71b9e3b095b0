package flag

import (
	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/player"
)

// FlagOnMapEvent fires whenever a flag transitions to OnMap (§4.8
// try_set_flag_on_map). Transport subscribes to this to broadcast the
// FlagLocation packet; chat subscribes for the text equivalent.
type FlagOnMapEvent struct {
	Arena *arena.Arena
	Flag  Flag
}

// FlagGainEvent fires when a flag is newly carried (§4.8
// try_set_flag_carried).
type FlagGainEvent struct {
	Player *player.Player
	FlagID int
}

// FlagLostEvent fires once per flag a player stops carrying, whether by
// DropFlags or by dying (§4.8).
type FlagLostEvent struct {
	Player *player.Player
	FlagID int
	Reason LostReason
}

// FlagGameResetEvent fires from reset_game (§4.8). Transport broadcasts the
// binary FlagReset packet; chat broadcasts the equivalent arena message.
type FlagGameResetEvent struct {
	Arena      *arena.Arena
	WinnerFreq int
	Points     int
}

// FlagDropEvent fires once per DropFlags call (before the per-flag
// FlagLostEvent/placement follow-up), letting transport broadcast the
// FlagDrop packet naming the player who dropped.
type FlagDropEvent struct {
	Arena  *arena.Arena
	Player *player.Player
}

// FlagPickupEvent fires from try_set_flag_carried for any reason other than
// Kill (a kill packet already implies pickup, so no separate broadcast is
// needed in that case — §4.8).
type FlagPickupEvent struct {
	Arena  *arena.Arena
	Player *player.Player
	FlagID int
}
