// Package mainloop implements the mainloop and timers (spec C3): the
// single cooperative thread that drains queued work items and runs
// periodic timers, and is the serialization point for all state
// transitions. Grounded on the teacher's core/system.Runner (phase-ordered
// per-tick Update calls) generalized from a fixed 7-phase ECS tick into an
// open FIFO work queue plus independent timers, since the spec's mainloop
// is driven by posted callbacks rather than a fixed system list.
package mainloop

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type workItem struct {
	fn func()
}

type timerEntry struct {
	fn         func()
	key        string
	intervalMS int
	nextFire   time.Time
	cleared    bool
}

// Loop is the mainloop: one goroutine (Run) drains workCh and fires due
// timers; any goroutine may call QueueMainWork/SetTimer/ClearTimer.
type Loop struct {
	log *zap.Logger

	workCh chan workItem

	timerMu sync.Mutex
	timers  map[string]*timerEntry

	drainMu   sync.Mutex
	drainCond *sync.Cond
	pending   int // work items queued but not yet processed

	stop chan struct{}
}

func New(log *zap.Logger, queueSize int) *Loop {
	l := &Loop{
		log:    log,
		workCh: make(chan workItem, queueSize),
		timers: make(map[string]*timerEntry),
		stop:   make(chan struct{}),
	}
	l.drainCond = sync.NewCond(&l.drainMu)
	return l
}

// QueueMainWork appends fn to the FIFO queue; it runs on Run's goroutine on
// a future tick, never synchronously with the caller.
func (l *Loop) QueueMainWork(fn func()) {
	l.drainMu.Lock()
	l.pending++
	l.drainMu.Unlock()
	l.workCh <- workItem{fn: fn}
}

// SetTimer registers fn to fire after initialMS, then every intervalMS
// (0 = one-shot), under key. A second SetTimer with the same key replaces
// the first.
func (l *Loop) SetTimer(key string, initialMS, intervalMS int, fn func()) {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	l.timers[key] = &timerEntry{
		fn:         fn,
		key:        key,
		intervalMS: intervalMS,
		nextFire:   time.Now().Add(time.Duration(initialMS) * time.Millisecond),
	}
}

// ClearTimer removes the timer registered under key. A timer cleared mid-
// invocation (from within its own fn) will not fire again, because Run
// snapshots and re-checks the cleared flag before each fire.
func (l *Loop) ClearTimer(key string) {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if t, ok := l.timers[key]; ok {
		t.cleared = true
		delete(l.timers, key)
	}
}

// WaitForMainWorkDrain blocks the caller (not the mainloop) until the work
// queue is empty. It does not prevent new work from being queued
// concurrently by other goroutines; callers that need a true quiescent
// point should stop producers first.
func (l *Loop) WaitForMainWorkDrain() {
	l.drainMu.Lock()
	for l.pending > 0 {
		l.drainCond.Wait()
	}
	l.drainMu.Unlock()
}

// Run drains workCh and fires due timers until Stop is called. It must be
// invoked from exactly one goroutine — the mainloop.
func (l *Loop) Run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case item := <-l.workCh:
			l.runGuarded(item.fn)
			l.markDrained()
		case <-ticker.C:
			l.fireDueTimers()
		}
	}
}

// runGuarded recovers a panicking work item so one bad handler cannot take
// down the process; per §7 this is logged as a programmer error and the
// tick is dropped — state is left unchanged and re-evaluated next tick.
func (l *Loop) runGuarded(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("mainloop: recovered panic in queued work", zap.Any("panic", r))
		}
	}()
	fn()
}

func (l *Loop) markDrained() {
	l.drainMu.Lock()
	l.pending--
	if l.pending == 0 {
		l.drainCond.Broadcast()
	}
	l.drainMu.Unlock()
}

func (l *Loop) fireDueTimers() {
	now := time.Now()
	l.timerMu.Lock()
	due := make([]*timerEntry, 0, 4)
	for _, t := range l.timers {
		if !t.cleared && !t.nextFire.After(now) {
			due = append(due, t)
		}
	}
	l.timerMu.Unlock()

	for _, t := range due {
		l.timerMu.Lock()
		if t.cleared {
			l.timerMu.Unlock()
			continue
		}
		if t.intervalMS <= 0 {
			delete(l.timers, t.key)
		} else {
			t.nextFire = now.Add(time.Duration(t.intervalMS) * time.Millisecond)
		}
		l.timerMu.Unlock()

		l.runGuarded(t.fn)
	}
}

// Stop halts Run. Safe to call once.
func (l *Loop) Stop() {
	close(l.stop)
}
