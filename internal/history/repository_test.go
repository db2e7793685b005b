package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/domain"
)

func openMemory(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.CreateSchema(context.Background()); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	// second call must be a no-op
	if err := repo.CreateSchema(context.Background()); err != nil {
		t.Fatalf("CreateSchema again: %v", err)
	}
	return repo
}

func foolsMate(id string, ended time.Time) domain.EpisodeRecord {
	return domain.EpisodeRecord{
		ID:        id,
		Channel:   "streamer",
		Mode:      domain.ModeNormal,
		Outcome:   domain.OutcomeCheckmate,
		Winner:    "black",
		MovesUCI:  []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		Rounds:    4,
		StartedAt: ended.Add(-2 * time.Minute),
		EndedAt:   ended,
	}
}

func TestSaveAndListEpisodes(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SaveEpisode(ctx, foolsMate("ep-1", base)); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}
	second := foolsMate("ep-2", base.Add(time.Hour))
	second.Outcome = domain.OutcomeStalemate
	second.Winner = ""
	if err := repo.SaveEpisode(ctx, second); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}

	got, err := repo.Recent(ctx, "streamer", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ep-2" || got[1].ID != "ep-1" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].Outcome != domain.OutcomeCheckmate || len(got[1].MovesSAN) != 4 || got[1].Rounds != 4 {
		t.Fatalf("fields not round-tripped: %+v", got[1])
	}
	if !got[1].EndedAt.Equal(base) {
		t.Fatalf("ended_at = %v", got[1].EndedAt)
	}
	if other, _ := repo.Recent(ctx, "someone-else", 10); len(other) != 0 {
		t.Fatalf("channel filter leaked: %+v", other)
	}
}

func TestSaveEpisodeUpserts(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	rec := foolsMate("ep-1", time.Now())
	if err := repo.SaveEpisode(ctx, rec); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}
	rec.Rounds = 9
	if err := repo.SaveEpisode(ctx, rec); err != nil {
		t.Fatalf("SaveEpisode upsert: %v", err)
	}
	got, _ := repo.Recent(ctx, "streamer", 10)
	if len(got) != 1 || got[0].Rounds != 9 {
		t.Fatalf("upsert failed: %+v", got)
	}
	pgn, err := repo.PGNFor(ctx, "ep-1")
	if err != nil || !strings.Contains(pgn, "0-1") {
		t.Fatalf("PGNFor = %q, %v", pgn, err)
	}
}

func TestBuildPGN(t *testing.T) {
	pgn := BuildPGN(foolsMate("x", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	for _, want := range []string{
		`[Date "2026.03.01"]`,
		`[Result "0-1"]`,
		`[Termination "checkmate"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if strings.Contains(pgn, "[FEN") {
		t.Fatalf("standard start should not carry a FEN header")
	}

	puzzle := domain.EpisodeRecord{
		Puzzle:   true,
		StartFEN: "6k1/5ppp/8/8/8/8/5PPP/R5K1 b - - 0 1",
		Outcome:  domain.OutcomePuzzleWon,
		MovesSAN: []string{"Kh8", "Ra8#"},
	}
	pgn = BuildPGN(puzzle)
	if !strings.Contains(pgn, `[SetUp "1"]`) || !strings.Contains(pgn, "1... Kh8 2. Ra8# *") {
		t.Fatalf("unexpected puzzle pgn:\n%s", pgn)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
	if _, err := Open("sqlite", ""); err == nil {
		t.Fatalf("empty url should fail")
	}
}
