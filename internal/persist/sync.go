package persist

import (
	"context"
	"sync"
	"time"

	"github.com/warpzone/server/internal/arena"
	"github.com/warpzone/server/internal/player"
	"go.uber.org/zap"
)

const syncTimeout = 5 * time.Second

// Sync adapts ProfileRepo/ArenaStatRepo/ArenaRepo into the three
// asynchronous persistence contracts the core depends on:
// player.GlobalSync, player.ArenaSync, and arena.Persistence. Each request
// runs on its own goroutine (the spec's "persistence requests are
// asynchronous, completion posted back via sync_done") and always calls
// done, even on error — a failed load/save degrades to defaults rather
// than stalling the player/arena state machine forever, matching the
// "resource-unavailable" error-handling class in §7.
type Sync struct {
	profiles *ProfileRepo
	stats    *ArenaStatRepo
	arenas   *ArenaRepo
	log      *zap.Logger

	mu          sync.Mutex
	arenaBlobs  map[string][]byte // arena name -> last-loaded blob, for modules to consult
}

func NewSync(db *DB, log *zap.Logger) *Sync {
	return &Sync{
		profiles:   NewProfileRepo(db),
		stats:      NewArenaStatRepo(db),
		arenas:     NewArenaRepo(db),
		log:        log,
		arenaBlobs: make(map[string][]byte),
	}
}

var _ player.GlobalSync = (*Sync)(nil)
var _ player.ArenaSync = (*Sync)(nil)
var _ arena.Persistence = (*Sync)(nil)

func (s *Sync) RequestPlayerGlobalLoad(p *player.Player, done func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		row, err := s.profiles.Load(ctx, p.Name)
		if err != nil {
			s.log.Warn("player global load failed", zap.String("player", p.Name), zap.Error(err))
		} else {
			p.Squad = row.Squad
		}
		done()
	}()
}

func (s *Sync) RequestPlayerGlobalSave(p *player.Player, done func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		lastArena := ""
		if p.Arena != nil {
			lastArena = p.Arena.Name
		}
		row := &ProfileRow{Name: p.Name, Squad: p.Squad, LastArena: lastArena}
		if err := s.profiles.Save(ctx, row); err != nil {
			s.log.Warn("player global save failed", zap.String("player", p.Name), zap.Error(err))
		}
		done()
	}()
}

func (s *Sync) RequestPlayerArenaLoad(p *player.Player, a *arena.Arena, done func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		row, err := s.stats.Load(ctx, p.Name, a.BaseName)
		if err != nil {
			s.log.Warn("player arena load failed",
				zap.String("player", p.Name), zap.String("arena", a.Name), zap.Error(err))
		} else {
			p.Ship = int(row.Ship)
			p.Freq = int(row.Freq)
		}
		done()
	}()
}

func (s *Sync) RequestPlayerArenaSave(p *player.Player, a *arena.Arena, done func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		row := &ArenaStatRow{
			PlayerName: p.Name,
			ArenaBase:  a.BaseName,
			Ship:       int32(p.Ship),
			Freq:       int32(p.Freq),
		}
		if err := s.stats.Save(ctx, row); err != nil {
			s.log.Warn("player arena save failed",
				zap.String("player", p.Name), zap.String("arena", a.Name), zap.Error(err))
		}
		done()
	}()
}

func (s *Sync) RequestArenaLoad(a *arena.Arena, done func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		data, err := s.arenas.Load(ctx, a.Name)
		if err != nil {
			s.log.Warn("arena load failed", zap.String("arena", a.Name), zap.Error(err))
		} else {
			s.mu.Lock()
			s.arenaBlobs[a.Name] = data
			s.mu.Unlock()
		}
		done()
	}()
}

func (s *Sync) RequestArenaSave(a *arena.Arena, done func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		s.mu.Lock()
		data := s.arenaBlobs[a.Name]
		s.mu.Unlock()
		if err := s.arenas.Save(ctx, a.Name, data); err != nil {
			s.log.Warn("arena save failed", zap.String("arena", a.Name), zap.Error(err))
		}
		done()
	}()
}

// ArenaBlob returns the last-loaded opaque arena-scoped blob for name, if
// any, so an attached module (e.g. a freq-manager) can decode its own
// schema out of it after DoInit2/WaitSync1 completes.
func (s *Sync) ArenaBlob(name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arenaBlobs[name]
}

// SetArenaBlob lets an attached module stage its own encoded state ahead
// of the next RequestArenaSave (DoWriteData/WaitSync2).
func (s *Sync) SetArenaBlob(name string, data []byte) {
	s.mu.Lock()
	s.arenaBlobs[name] = data
	s.mu.Unlock()
}
