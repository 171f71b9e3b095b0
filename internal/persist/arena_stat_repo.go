package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ArenaStatRow is one player's persisted per-arena state (§3's arena-scoped
// subset: last ship/freq, plus simple lifetime score counters), keyed by
// (player name, arena base name) so recycled/numbered arena instances
// ("test", "test1", "test2", ...) share one stat row per base name.
type ArenaStatRow struct {
	PlayerName string
	ArenaBase  string
	Ship       int32
	Freq       int32
	Kills      int32
	Deaths     int32
	FlagGames  int32
}

// ArenaStatRepo is the ArenaSync (C6 "DoFreqAndArenaSync"/"DoArenaSync2")
// collaborator. Grounded on the teacher's character_repo.go row-shaped
// load/create/save trio, narrowed from a full RPG character sheet down to
// the fields this core's arena-entry subchain actually touches.
type ArenaStatRepo struct {
	db *DB
}

func NewArenaStatRepo(db *DB) *ArenaStatRepo {
	return &ArenaStatRepo{db: db}
}

func (r *ArenaStatRepo) Load(ctx context.Context, playerName, arenaBase string) (*ArenaStatRow, error) {
	row := &ArenaStatRow{PlayerName: playerName, ArenaBase: arenaBase}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT ship, freq, kills, deaths, flag_games
		 FROM player_arena_stats WHERE player_name = $1 AND arena_base = $2`,
		playerName, arenaBase,
	).Scan(&row.Ship, &row.Freq, &row.Kills, &row.Deaths, &row.FlagGames)
	if errors.Is(err, pgx.ErrNoRows) {
		return row, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *ArenaStatRepo) Save(ctx context.Context, row *ArenaStatRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO player_arena_stats (player_name, arena_base, ship, freq, kills, deaths, flag_games)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (player_name, arena_base) DO UPDATE SET
		   ship = EXCLUDED.ship,
		   freq = EXCLUDED.freq,
		   kills = EXCLUDED.kills,
		   deaths = EXCLUDED.deaths,
		   flag_games = EXCLUDED.flag_games`,
		row.PlayerName, row.ArenaBase, row.Ship, row.Freq, row.Kills, row.Deaths, row.FlagGames,
	)
	return err
}
