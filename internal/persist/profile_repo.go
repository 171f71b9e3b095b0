package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProfileRow is a player's zone-scoped (not per-arena) persisted state:
// squad membership and simple lifetime counters that outlive any single
// arena visit (§3's "Player" attributes, the subset that is global).
type ProfileRow struct {
	Name       string
	Squad      string
	LoginCount int32
	LastArena  string
	LastSeen   time.Time
}

// ProfileRepo is the GlobalSync (C6 "NeedGlobalSync"/"LeavingZone")
// collaborator: it loads/saves the slice of Player state that is scoped to
// the whole zone rather than one arena. Grounded on the teacher's
// account_repo.go load-then-upsert shape, adapted from account/password
// rows (auth lives in C9's TOML passwd.conf instead) to squad/profile rows.
type ProfileRepo struct {
	db *DB
}

func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Load(ctx context.Context, name string) (*ProfileRow, error) {
	row := &ProfileRow{Name: name}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT squad, login_count, last_arena, last_seen
		 FROM player_profiles WHERE name = $1`, name,
	).Scan(&row.Squad, &row.LoginCount, &row.LastArena, &row.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return &ProfileRow{Name: name}, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *ProfileRepo) Save(ctx context.Context, row *ProfileRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO player_profiles (name, squad, login_count, last_arena, last_seen)
		 VALUES ($1, $2, 1, $3, NOW())
		 ON CONFLICT (name) DO UPDATE SET
		   squad = EXCLUDED.squad,
		   login_count = player_profiles.login_count + 1,
		   last_arena = EXCLUDED.last_arena,
		   last_seen = NOW()`,
		row.Name, row.Squad, row.LastArena,
	)
	return err
}
