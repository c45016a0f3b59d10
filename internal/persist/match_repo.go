package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MatchRecord is the summary of a finished match. Snapshots and tapes are
// never stored; they only live as long as the process.
type MatchRecord struct {
	ID           uuid.UUID
	Scenario     string
	Winner       int
	Rounds       int
	Frames       uint64
	Elapsed      time.Duration
	Digest       string
	Participants []ParticipantRecord
}

type ParticipantRecord struct {
	Name       string
	Team       int
	Controller string
	Alive      bool
	HP         int32
	Kills      int
	Damage     int
}

type MatchRepo struct {
	db *DB
}

func NewMatchRepo(db *DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// Save writes the match and its participants in a single transaction.
func (r *MatchRepo) Save(ctx context.Context, m MatchRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("match begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO matches (id, scenario, winner, rounds, frames, elapsed_ms, digest)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID.String(), m.Scenario, m.Winner, m.Rounds, int64(m.Frames), m.Elapsed.Milliseconds(), m.Digest,
	); err != nil {
		return fmt.Errorf("match insert: %w", err)
	}

	for i, p := range m.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO match_participants (match_id, slot, name, team, controller, alive, hp, kills, damage)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			m.ID.String(), i, p.Name, p.Team, p.Controller, p.Alive, p.HP, p.Kills, p.Damage,
		); err != nil {
			return fmt.Errorf("participant insert %q: %w", p.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// Count returns the number of stored matches.
func (r *MatchRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("match count: %w", err)
	}
	return n, nil
}
