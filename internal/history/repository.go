// Package history persists finished episodes.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	_ "modernc.org/sqlite"
)

var ErrUnknownDriver = errors.New("unknown database driver")

type Repository struct {
	db     *sql.DB
	driver string
}

// Open connects and pings. driver is "postgres" or "sqlite"; for sqlite the url is
// a file path or ":memory:".
func Open(driver, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one writer; also keeps ":memory:" on a single database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db, driver: driver}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CreateSchema is idempotent.
func (r *Repository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS vote_episodes (
    episode_id TEXT PRIMARY KEY,
    channel TEXT NOT NULL,
    game_mode TEXT NOT NULL,
    puzzle BOOLEAN NOT NULL DEFAULT FALSE,
    puzzle_id TEXT NOT NULL DEFAULT '',
    start_fen TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    winner TEXT NOT NULL DEFAULT '',
    rounds INTEGER NOT NULL DEFAULT 0,
    moves_uci TEXT NOT NULL,
    moves_san TEXT NOT NULL,
    pgn TEXT NOT NULL,
    started_at_ms BIGINT NOT NULL,
    ended_at_ms BIGINT NOT NULL,
    duration_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_episodes_channel ON vote_episodes(channel, ended_at_ms);
`

// SaveEpisode upserts a finished episode.
func (r *Repository) SaveEpisode(ctx context.Context, rec domain.EpisodeRecord) error {
	if r == nil || r.db == nil {
		return nil
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("save episode: empty id")
	}
	movesUCIRaw, _ := json.Marshal(nonNil(rec.MovesUCI))
	movesSANRaw, _ := json.Marshal(nonNil(rec.MovesSAN))
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO vote_episodes (
        episode_id, channel, game_mode, puzzle, puzzle_id, start_fen,
        outcome, winner, rounds, moves_uci, moves_san, pgn,
        started_at_ms, ended_at_ms, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
      ) ON CONFLICT (episode_id) DO UPDATE SET
        outcome=EXCLUDED.outcome,
        winner=EXCLUDED.winner,
        rounds=EXCLUDED.rounds,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at_ms=EXCLUDED.ended_at_ms,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.Channel, string(rec.Mode), rec.Puzzle, rec.PuzzleID, rec.StartFEN,
		string(rec.Outcome), rec.Winner, rec.Rounds, string(movesUCIRaw), string(movesSANRaw), BuildPGN(rec),
		rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(), duration,
	)
	if err != nil {
		return fmt.Errorf("save episode %s: %w", rec.ID, err)
	}
	return nil
}

// Recent lists a channel's latest episodes, newest first.
func (r *Repository) Recent(ctx context.Context, channel string, limit int) ([]domain.EpisodeRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `SELECT
        episode_id, channel, game_mode, puzzle, puzzle_id, start_fen,
        outcome, winner, rounds, moves_uci, moves_san, started_at_ms, ended_at_ms
      FROM vote_episodes WHERE channel = $1 ORDER BY ended_at_ms DESC LIMIT $2`, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []domain.EpisodeRecord
	for rows.Next() {
		var (
			rec                domain.EpisodeRecord
			mode, outcome      string
			uciRaw, sanRaw     string
			startedMS, endedMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.Channel, &mode, &rec.Puzzle, &rec.PuzzleID, &rec.StartFEN,
			&outcome, &rec.Winner, &rec.Rounds, &uciRaw, &sanRaw, &startedMS, &endedMS); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		rec.Mode = domain.GameMode(mode)
		rec.Outcome = domain.Outcome(outcome)
		_ = json.Unmarshal([]byte(uciRaw), &rec.MovesUCI)
		_ = json.Unmarshal([]byte(sanRaw), &rec.MovesSAN)
		rec.StartedAt = time.UnixMilli(startedMS).UTC()
		rec.EndedAt = time.UnixMilli(endedMS).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PGNFor returns the stored PGN of an episode.
func (r *Repository) PGNFor(ctx context.Context, id string) (string, error) {
	var pgn string
	err := r.db.QueryRowContext(ctx, `SELECT pgn FROM vote_episodes WHERE episode_id = $1`, id).Scan(&pgn)
	if err != nil {
		return "", err
	}
	return pgn, nil
}

func resultToken(rec domain.EpisodeRecord) string {
	switch rec.Outcome {
	case domain.OutcomeCheckmate:
		switch strings.ToLower(rec.Winner) {
		case "white":
			return "1-0"
		case "black":
			return "0-1"
		}
		return "*"
	case domain.OutcomeDraw, domain.OutcomeStalemate:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders an episode as PGN. Non-standard starts carry SetUp/FEN headers and
// black-first games number the first move "1...".
func BuildPGN(rec domain.EpisodeRecord) string {
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := resultToken(rec)
	event := "Chat Vote Game"
	if rec.Puzzle {
		event = "Chat Vote Puzzle"
	}
	fmt.Fprintf(&b, "[Event \"%s\"]\n", event)
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePGN(rec.Channel))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	b.WriteString("[White \"Chat\"]\n[Black \"Chat\"]\n")
	fen := strings.TrimSpace(rec.StartFEN)
	blackFirst := false
	if fen != "" && fen != "startpos" && !strings.HasPrefix(fen, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w") {
		b.WriteString("[SetUp \"1\"]\n")
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", sanitizePGN(fen))
		if f := strings.Fields(fen); len(f) > 1 && f[1] == "b" {
			blackFirst = true
		}
	}
	if rec.Outcome != domain.OutcomeNone {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(string(rec.Outcome)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	moves := rec.MovesSAN
	turn := 1
	i := 0
	if blackFirst && len(moves) > 0 {
		fmt.Fprintf(&b, "1... %s ", strings.TrimSpace(moves[0]))
		i, turn = 1, 2
	}
	for ; i < len(moves); i += 2 {
		fmt.Fprintf(&b, "%d. %s", turn, strings.TrimSpace(moves[i]))
		if i+1 < len(moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(moves[i+1]))
		}
		b.WriteString(" ")
		turn++
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
