package player

// Status drives the C6 player lifecycle state machine (§3, §4.5). Writing
// a player's status is what schedules its handler on the next 100ms tick.
type Status int

const (
	Connected Status = iota
	NeedAuth
	WaitAuth
	NeedGlobalSync
	WaitGlobalSync1
	DoGlobalCallbacks
	SendLoginResponse
	LoggedIn
	DoFreqAndArenaSync
	WaitArenaSync1
	ArenaRespAndCBS
	Playing
	LeavingArena
	DoArenaSync2
	WaitArenaSync2
	LeavingZone
	WaitGlobalSync2
	TimeWait
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "Connected"
	case NeedAuth:
		return "NeedAuth"
	case WaitAuth:
		return "WaitAuth"
	case NeedGlobalSync:
		return "NeedGlobalSync"
	case WaitGlobalSync1:
		return "WaitGlobalSync1"
	case DoGlobalCallbacks:
		return "DoGlobalCallbacks"
	case SendLoginResponse:
		return "SendLoginResponse"
	case LoggedIn:
		return "LoggedIn"
	case DoFreqAndArenaSync:
		return "DoFreqAndArenaSync"
	case WaitArenaSync1:
		return "WaitArenaSync1"
	case ArenaRespAndCBS:
		return "ArenaRespAndCBS"
	case Playing:
		return "Playing"
	case LeavingArena:
		return "LeavingArena"
	case DoArenaSync2:
		return "DoArenaSync2"
	case WaitArenaSync2:
		return "WaitArenaSync2"
	case LeavingZone:
		return "LeavingZone"
	case WaitGlobalSync2:
		return "WaitGlobalSync2"
	case TimeWait:
		return "TimeWait"
	default:
		return "Unknown"
	}
}

// waiting reports whether s is a passive "Wait*" status: the state machine
// takes no action on these during a tick scan, since they only advance when
// the async collaborator they are waiting on calls back (§4.5 sync_done).
func (s Status) waiting() bool {
	switch s {
	case WaitAuth, WaitGlobalSync1, WaitArenaSync1, WaitArenaSync2, WaitGlobalSync2:
		return true
	default:
		return false
	}
}

// Kind is the player's client transport (§3).
type Kind int

const (
	KindStandard Kind = iota
	KindChat
	KindFake
)
