package arena

// Callback event types fired through the broker (package broker) during
// the arena lifecycle (§4.4). Modules subscribe via broker.RegisterCallback.

// PreCreateEvent fires once config is open, before any module attaches
// (end of DoInit0).
type PreCreateEvent struct{ Arena *Arena }

// CreateEvent fires after modules have been attached (end of DoInit1).
type CreateEvent struct{ Arena *Arena }

// DestroyEvent fires at the start of teardown (DoDestroy1), before modules
// detach.
type DestroyEvent struct{ Arena *Arena }

// PostDestroyEvent fires after modules have detached and config closed
// (end of DoDestroy2), whether or not the arena is about to resurrect.
type PostDestroyEvent struct{ Arena *Arena }

// ArenaCreateFailedEvent fires when arena.conf could not be opened, just
// before the arena is removed from the table. The player state machine
// does not subscribe to it; enterers are not rerouted.
type ArenaCreateFailedEvent struct{ Arena *Arena }

// ConfChangedEvent fires when the (out-of-scope) config store notifies of a
// change to an arena's configuration while Running.
type ConfChangedEvent struct{ Arena *Arena }
