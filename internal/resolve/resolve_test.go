package resolve

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/tally"
)

type fixedRNG float64

func (f fixedRNG) Float64() float64 { return float64(f) }

func TestMajorityScenario(t *testing.T) {
	tl := tally.New([]string{"e4", "d4", "Nf3"}, false)
	tl.Record("u1", "e4")
	tl.Record("u2", "d4")
	tl.Record("u3", "e4")
	res, err := Resolve(StrategyMajority, false, tl, fixedRNG(0.99))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != MoveResolved || res.Move != "e4" || res.Spun {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMajorityDeterministicTieBreak(t *testing.T) {
	tl := tally.New([]string{"e4", "d4", "c4"}, false)
	tl.Record("u1", "d4")
	tl.Record("u2", "e4")
	r1, _ := Resolve(StrategyMajority, false, tl, rand.New(rand.NewSource(1)))
	r2, _ := Resolve(StrategyMajority, false, tl, rand.New(rand.NewSource(2)))
	if r1.Move != r2.Move || r1.Move != "d4" {
		t.Fatalf("tie-break not deterministic: %q %q", r1.Move, r2.Move)
	}
}

func TestEmptyTallyFallsBackToUniformWheel(t *testing.T) {
	legal := []string{"e4", "d4"}
	tl := tally.New(legal, false)
	seen := map[string]int{}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		res, err := Resolve(StrategyMajority, false, tl, rng)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if res.Kind != MoveResolved || !res.Spun {
			t.Fatalf("expected spun move, got %+v", res)
		}
		seen[res.Move]++
	}
	if seen["e4"] == 0 || seen["d4"] == 0 || len(seen) != 2 {
		t.Fatalf("fallback should reach every legal move: %v", seen)
	}
}

func TestEmptyTallyFailsPuzzle(t *testing.T) {
	tl := tally.New([]string{"e4"}, false)
	res, err := Resolve(StrategyWheel, true, tl, fixedRNG(0))
	if err != nil || res.Kind != PuzzleFailed {
		t.Fatalf("expected PuzzleFailed, got %+v err=%v", res, err)
	}
}

func TestZeroLegalMovesIsProgrammerError(t *testing.T) {
	tl := tally.New(nil, false)
	_, err := Resolve(StrategyMajority, false, tl, fixedRNG(0))
	var pe ProgrammerError
	if !errors.As(err, &pe) || !errors.Is(err, ErrNoLegalMoves) {
		t.Fatalf("expected ProgrammerError, got %v", err)
	}
}

func TestWheelProportionalToCounts(t *testing.T) {
	wedges := []tally.Entry{{Move: "A", Count: 3}, {Move: "B", Count: 1}}
	rng := rand.New(rand.NewSource(42))
	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		idx, err := Spin(wedges, rng)
		if err != nil {
			t.Fatalf("Spin: %v", err)
		}
		counts[wedges[idx].Move]++
	}
	ratio := float64(counts["A"]) / float64(counts["B"])
	if math.Abs(ratio-3)/3 > 0.10 {
		t.Fatalf("ratio %.3f outside tolerance (A=%d B=%d)", ratio, counts["A"], counts["B"])
	}
}

func TestSpinBoundaries(t *testing.T) {
	wedges := []tally.Entry{{Move: "A", Count: 3}, {Move: "Z", Count: 0}, {Move: "B", Count: 1}}
	cases := []struct {
		r    float64
		want string
	}{
		{0, "A"},
		{0.74, "A"},
		{0.75, "B"},
		{0.9999999999, "B"},
	}
	for _, tc := range cases {
		i, err := Spin(wedges, fixedRNG(tc.r))
		if err != nil || wedges[i].Move != tc.want {
			t.Fatalf("Spin(%v) = %d err=%v want %s", tc.r, i, err, tc.want)
		}
	}
	if _, err := Spin([]tally.Entry{{Move: "A"}}, fixedRNG(0)); !errors.Is(err, ErrNoWedges) {
		t.Fatalf("expected ErrNoWedges, got %v", err)
	}
}

func TestWheelStrategyUsesVotes(t *testing.T) {
	tl := tally.New([]string{"e4", "d4"}, false)
	tl.Record("u1", "d4")
	res, err := Resolve(StrategyWheel, false, tl, fixedRNG(0.5))
	if err != nil || res.Move != "d4" || !res.Spun || len(res.Wedges) != 1 {
		t.Fatalf("unexpected wheel result: %+v err=%v", res, err)
	}
}

func TestPlaybackSolvedAfterReply(t *testing.T) {
	pb := NewPlayback([]string{"e2e4", "e7e5"})
	res := pb.Check(domain.AppliedMove{SAN: "e4", From: "e2", To: "e4"})
	if res.Kind != MoveResolved || pb.Attempt != 1 {
		t.Fatalf("first check: %+v attempt=%d", res, pb.Attempt)
	}
	reply, ok := pb.Reply()
	if !ok || reply != "e7e5" || pb.Attempt != 2 || !pb.Done() {
		t.Fatalf("reply=%q ok=%v attempt=%d", reply, ok, pb.Attempt)
	}
}

func TestPlaybackPromotionMismatchFails(t *testing.T) {
	pb := NewPlayback([]string{"a7a8q"})
	res := pb.Check(domain.AppliedMove{SAN: "a8=N", From: "a7", To: "a8", Promotion: "n"})
	if res.Kind != PuzzleFailed {
		t.Fatalf("expected PuzzleFailed, got %+v", res)
	}
	if pb.Attempt != 0 {
		t.Fatalf("failed check must not advance: %d", pb.Attempt)
	}
	res = pb.Check(domain.AppliedMove{SAN: "a8=Q", From: "a7", To: "a8", Promotion: "q"})
	if res.Kind != PuzzleSolved {
		t.Fatalf("expected PuzzleSolved, got %+v", res)
	}
}

func TestPlaybackWrongSquareFails(t *testing.T) {
	pb := NewPlayback([]string{"g1f3"})
	if res := pb.Check(domain.AppliedMove{From: "b1", To: "c3"}); res.Kind != PuzzleFailed {
		t.Fatalf("expected PuzzleFailed, got %+v", res)
	}
}
