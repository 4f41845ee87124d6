// internal/history/history.go
//
// Persistence of finished (won) sessions and per-player stats.
// Responsibilities:
//   - Record one row per won session, keyed by (game id, session number).
//   - Keep wins / best moves / best seconds on the users row.
//   - List a player's recent wins and move guest history onto an account.
//
// Boards themselves are never stored; only outcomes are.

package history

import (
	"context"
	"database/sql"
	"time"
)

// Owner identifies who played: a signed-in user or a guest cookie.
type Owner struct {
	UserID string
	AnonID string
}

// Result is a won session.
type Result struct {
	GameID         string    `json:"gameId"`
	Session        uint64    `json:"session"`
	Mode           string    `json:"mode"`
	Moves          int       `json:"moves"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// Stats is the per-user summary served by /stats/me.
type Stats struct {
	Wins        int  `json:"wins"`
	BestMoves   *int `json:"bestMoves,omitempty"`
	BestSeconds *int `json:"bestSeconds,omitempty"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts a won session. It reports false when the session was
// already recorded, in which case stats must not be bumped again.
func (s *Store) Record(ctx context.Context, o Owner, r Result) (bool, error) {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO games
			(id, session, user_id, anonymous_id, mode, moves, elapsed_seconds, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.GameID, r.Session, nullable(o.UserID), nullable(o.AnonID), r.Mode,
		r.Moves, r.ElapsedSeconds, r.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// BumpStats adds a win and lowers personal bests where beaten.
func (s *Store) BumpStats(ctx context.Context, userID string, moves, seconds int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			wins = wins + 1,
			best_moves = CASE WHEN best_moves IS NULL OR ? < best_moves THEN ? ELSE best_moves END,
			best_seconds = CASE WHEN best_seconds IS NULL OR ? < best_seconds THEN ? ELSE best_seconds END
		WHERE id = ?`, moves, moves, seconds, seconds, userID)
	return err
}

// StatsFor loads the summary for one user.
func (s *Store) StatsFor(ctx context.Context, userID string) (Stats, error) {
	var st Stats
	var bm, bs sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT wins, best_moves, best_seconds FROM users WHERE id=?`, userID,
	).Scan(&st.Wins, &bm, &bs)
	if err != nil {
		return Stats{}, err
	}
	if bm.Valid {
		v := int(bm.Int64)
		st.BestMoves = &v
	}
	if bs.Valid {
		v := int(bs.Int64)
		st.BestSeconds = &v
	}
	return st, nil
}

// Mine lists a user's most recent wins, newest first.
func (s *Store) Mine(ctx context.Context, userID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, mode, moves, elapsed_seconds, finished_at
		FROM games WHERE user_id=? ORDER BY finished_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var r Result
		var finished string
		if err := rows.Scan(&r.GameID, &r.Session, &r.Mode, &r.Moves, &r.ElapsedSeconds, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Claim transfers guest history to a user account after signup/login.
func (s *Store) Claim(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
