package resolve

import (
	"strings"

	"github.com/park285/Cheese-ChessVote/internal/domain"
)

// Playback is the caller-owned cursor through a puzzle solution. Solution holds UCI
// moves; Attempt is the index of the next expected move.
type Playback struct {
	Solution []string
	Attempt  int
}

// NewPlayback starts at index 0. Puzzles whose first move is the opponent's should
// play it through Reply before the first round.
func NewPlayback(solution []string) *Playback {
	out := make([]string, 0, len(solution))
	for _, m := range solution {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			out = append(out, m)
		}
	}
	return &Playback{Solution: out}
}

// Expected is the solution move at the cursor.
func (p *Playback) Expected() (string, bool) {
	if p == nil || p.Attempt < 0 || p.Attempt >= len(p.Solution) {
		return "", false
	}
	return p.Solution[p.Attempt], true
}

// Done reports whether every solution move was played.
func (p *Playback) Done() bool { return p != nil && p.Attempt >= len(p.Solution) }

// Check validates the human move the board just applied. From, to and promotion must
// all match; a coincidentally equal SAN is not enough. On a match the cursor advances
// and the result is PuzzleSolved if nothing remains, otherwise MoveResolved.
func (p *Playback) Check(applied domain.AppliedMove) Result {
	want, ok := p.Expected()
	if !ok || !matches(applied, want) {
		return Result{Kind: PuzzleFailed, Move: applied.SAN}
	}
	p.Attempt++
	if p.Done() {
		return Result{Kind: PuzzleSolved, Move: applied.SAN}
	}
	return Result{Kind: MoveResolved, Move: applied.SAN}
}

// Reply returns the opponent move at the cursor and advances past it.
func (p *Playback) Reply() (string, bool) {
	mv, ok := p.Expected()
	if !ok {
		return "", false
	}
	p.Attempt++
	return mv, true
}

func matches(applied domain.AppliedMove, want string) bool {
	if len(want) < 4 {
		return false
	}
	promo := ""
	if len(want) > 4 {
		promo = want[4:]
	}
	return strings.EqualFold(applied.From, want[0:2]) &&
		strings.EqualFold(applied.To, want[2:4]) &&
		strings.EqualFold(applied.Promotion, promo)
}
