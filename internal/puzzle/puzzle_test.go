package puzzle

import (
	"errors"
	"testing"

	"github.com/park285/Cheese-ChessVote/internal/domain"
)

func TestLoadSampleSet(t *testing.T) {
	ps, err := Load("testdata/puzzles.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 puzzles, got %d", len(ps))
	}
	if got := ps[1].Moves; len(got) != 2 || got[0] != "g8h8" {
		t.Fatalf("string move list not split: %v", got)
	}
	if ps[0].Rating != 600 || len(ps[0].Themes) != 2 {
		t.Fatalf("metadata lost: %+v", ps[0])
	}
}

func TestBeginPlaysOpeningMove(t *testing.T) {
	ps, err := Load("testdata/puzzles.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, pb, err := Begin(ps[1])
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if pb.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", pb.Attempt)
	}
	if want, _ := pb.Expected(); want != "a1a8" {
		t.Fatalf("expected a1a8, got %s", want)
	}
	if b.Turn() != domain.TeamWhite || len(b.MovesUCI()) != 1 {
		t.Fatalf("opening move not played: turn=%v moves=%v", b.Turn(), b.MovesUCI())
	}
}

func TestParseRejectsBadPuzzles(t *testing.T) {
	cases := map[string]string{
		"empty":   "puzzles: []",
		"short":   "puzzles:\n  - id: x\n    fen: startpos\n    moves: e2e4\n",
		"illegal": "puzzles:\n  - id: x\n    fen: startpos\n    moves: e2e5 e7e5\n",
		"bad fen": "puzzles:\n  - id: x\n    fen: not-a-fen\n    moves: e2e4 e7e5\n",
		"mapping": "puzzles:\n  - id: x\n    moves: {a: b}\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Parse([]byte("puzzles: []")); !errors.Is(err, ErrEmptySet) {
		t.Fatalf("expected ErrEmptySet, got %v", err)
	}
}

func TestSetSequentialWraps(t *testing.T) {
	ps := []Puzzle{{ID: "a"}, {ID: "b"}}
	s, err := NewSet(ps, false, 1)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if s.Current().ID != "a" {
		t.Fatalf("current before next should start the set")
	}
	got := []string{s.Current().ID, s.Next().ID, s.Next().ID, s.Current().ID}
	want := []string{"a", "b", "a", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSetShuffleCoversAll(t *testing.T) {
	ps := []Puzzle{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	s, _ := NewSet(ps, true, 7)
	seen := map[string]int{}
	for i := 0; i < 8; i++ {
		seen[s.Next().ID]++
	}
	for _, p := range ps {
		if seen[p.ID] != 2 {
			t.Fatalf("each puzzle once per pass: %v", seen)
		}
	}
	if _, err := NewSet(nil, true, 1); !errors.Is(err, ErrEmptySet) {
		t.Fatalf("expected ErrEmptySet")
	}
}
