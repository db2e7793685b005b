// Package resolve turns a closed tally into exactly one round result.
package resolve

import (
	"errors"
	"fmt"

	"github.com/park285/Cheese-ChessVote/internal/tally"
)

// RNG yields uniform values in [0,1). *math/rand.Rand satisfies it.
type RNG interface {
	Float64() float64
}

// Strategy selects how a non-empty tally becomes a move.
type Strategy int

const (
	StrategyMajority Strategy = iota
	StrategyWheel
)

func (s Strategy) String() string {
	if s == StrategyWheel {
		return "wheel"
	}
	return "majority"
}

// Kind is the class of a resolution result.
type Kind int

const (
	MoveResolved Kind = iota
	PuzzleFailed
	PuzzleSolved
)

func (k Kind) String() string {
	switch k {
	case MoveResolved:
		return "move_resolved"
	case PuzzleFailed:
		return "puzzle_failed"
	case PuzzleSolved:
		return "puzzle_solved"
	default:
		return "unknown"
	}
}

// Result is what a closed round resolved to. Wedges and Pick are set when the
// wheel produced the move so a presenter can animate the same outcome.
type Result struct {
	Kind   Kind
	Move   string
	Spun   bool
	Wedges []tally.Entry
	Pick   int
}

// ProgrammerError marks a broken caller contract. It is never a game outcome.
type ProgrammerError string

func (e ProgrammerError) Error() string { return string(e) }

var (
	ErrNoLegalMoves = ProgrammerError("resolution invoked with zero legal moves")
	ErrNoWedges     = errors.New("wheel has no weighted wedges")
)

// Closed is the read side of a tally after its round closed.
type Closed interface {
	TotalVotes() int
	Snapshot() []tally.Entry
	Legal() []string
}

// Resolve picks the round result. An empty tally fails a puzzle and otherwise spins
// the wheel over every legal move with one synthetic vote each.
func Resolve(strategy Strategy, puzzle bool, t Closed, rng RNG) (Result, error) {
	legal := t.Legal()
	if len(legal) == 0 {
		return Result{}, ErrNoLegalMoves
	}
	if t.TotalVotes() == 0 {
		if puzzle {
			return Result{Kind: PuzzleFailed}, nil
		}
		return spinResult(tally.Uniform(legal), rng)
	}
	snap := t.Snapshot()
	if strategy == StrategyWheel {
		return spinResult(snap, rng)
	}
	move, ok := Majority(snap)
	if !ok {
		return Result{}, fmt.Errorf("majority over non-empty tally found no leader")
	}
	return Result{Kind: MoveResolved, Move: move}, nil
}

// Majority returns the first entry holding the highest count. Snapshot order is
// first-seen order, so ties go to the move that was voted for first.
func Majority(snap []tally.Entry) (string, bool) {
	best := -1
	for i, e := range snap {
		if e.Count <= 0 {
			continue
		}
		if best < 0 || e.Count > snap[best].Count {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return snap[best].Move, true
}

// Spin draws one wedge with probability proportional to its count.
func Spin(wedges []tally.Entry, rng RNG) (int, error) {
	total := 0
	for _, w := range wedges {
		if w.Count > 0 {
			total += w.Count
		}
	}
	if total == 0 {
		return -1, ErrNoWedges
	}
	threshold := rng.Float64() * float64(total)
	last := -1
	for i, w := range wedges {
		if w.Count <= 0 {
			continue
		}
		last = i
		threshold -= float64(w.Count)
		if threshold < 0 {
			return i, nil
		}
	}
	// float rounding at the top of the range lands on the last weighted wedge
	return last, nil
}

func spinResult(wedges []tally.Entry, rng RNG) (Result, error) {
	i, err := Spin(wedges, rng)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: MoveResolved, Move: wedges[i].Move, Spun: true, Wedges: wedges, Pick: i}, nil
}
