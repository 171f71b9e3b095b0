package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ArenaRepo persists arena-scoped data that outlives a single arena
// instance's lifetime (DoInit2/WaitSync1 load, DoWriteData/WaitSync2
// save) as an opaque JSON blob — the arena manager (C5) itself has no
// opinion on what's inside; modules attached to the arena (the carry-flag
// engine, a freq-manager) are the ones with a concrete schema, so this
// repo's contract stays schema-agnostic, the way the teacher's own
// warehouse/WAL repos left item/transaction schemas to their callers.
type ArenaRepo struct {
	db *DB
}

func NewArenaRepo(db *DB) *ArenaRepo {
	return &ArenaRepo{db: db}
}

func (r *ArenaRepo) Load(ctx context.Context, arenaName string) ([]byte, error) {
	var data []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT data FROM arena_state WHERE arena_name = $1`, arenaName,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *ArenaRepo) Save(ctx context.Context, arenaName string, data []byte) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO arena_state (arena_name, data, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (arena_name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		arenaName, data,
	)
	return err
}
