// Package puzzle loads puzzle sets and prepares them for playback.
package puzzle

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/park285/Cheese-ChessVote/internal/resolve"
	"github.com/park285/Cheese-ChessVote/internal/rules"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptySet      = errors.New("puzzle set is empty")
	ErrShortSolution = errors.New("puzzle needs an opening move and at least one reply")
)

// Moves is a UCI move list. YAML may give it as a sequence or as one
// space-separated string, the way puzzle databases export it.
type Moves []string

func (m *Moves) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*m = strings.Fields(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*m = list
		return nil
	default:
		return fmt.Errorf("line %d: moves must be a list or a string", node.Line)
	}
}

// Puzzle is one entry. FEN is the position before the opponent's first move, which
// is Moves[0]; the chat plays Moves[1], Moves[3], and so on.
type Puzzle struct {
	ID     string   `yaml:"id"`
	FEN    string   `yaml:"fen"`
	Moves  Moves    `yaml:"moves"`
	Rating int      `yaml:"rating"`
	Themes []string `yaml:"themes"`
}

type setFile struct {
	Puzzles []Puzzle `yaml:"puzzles"`
}

// Parse decodes and validates a puzzle set.
func Parse(data []byte) ([]Puzzle, error) {
	var f setFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse puzzles: %w", err)
	}
	if len(f.Puzzles) == 0 {
		return nil, ErrEmptySet
	}
	for i := range f.Puzzles {
		p := &f.Puzzles[i]
		if p.ID == "" {
			p.ID = fmt.Sprintf("puzzle-%d", i+1)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Puzzles, nil
}

func Load(path string) ([]Puzzle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read puzzles: %w", err)
	}
	return Parse(data)
}

// Validate replays the whole solution on a scratch board.
func (p Puzzle) Validate() error {
	if len(p.Moves) < 2 {
		return fmt.Errorf("puzzle %s: %w", p.ID, ErrShortSolution)
	}
	b, err := rules.FromFEN(p.FEN)
	if err != nil {
		return fmt.Errorf("puzzle %s: %w", p.ID, err)
	}
	for i, mv := range p.Moves {
		if _, err := b.ApplyMove(mv); err != nil {
			return fmt.Errorf("puzzle %s: move %d: %w", p.ID, i+1, err)
		}
	}
	return nil
}

// Begin sets up the board, plays the opponent's first move and returns a playback
// positioned at the chat's first move.
func Begin(p Puzzle) (*rules.Board, *resolve.Playback, error) {
	b, err := rules.FromFEN(p.FEN)
	if err != nil {
		return nil, nil, fmt.Errorf("puzzle %s: %w", p.ID, err)
	}
	pb := resolve.NewPlayback(p.Moves)
	first, ok := pb.Reply()
	if !ok {
		return nil, nil, fmt.Errorf("puzzle %s: %w", p.ID, ErrShortSolution)
	}
	if _, err := b.ApplyMove(first); err != nil {
		return nil, nil, fmt.Errorf("puzzle %s: opening move: %w", p.ID, err)
	}
	return b, pb, nil
}

// Set hands out puzzles in file order or shuffled. A shuffled set reshuffles after
// every full pass.
type Set struct {
	mu      sync.Mutex
	puzzles []Puzzle
	order   []int
	pos     int
	shuffle bool
	rng     *rand.Rand
}

func NewSet(puzzles []Puzzle, shuffle bool, seed int64) (*Set, error) {
	if len(puzzles) == 0 {
		return nil, ErrEmptySet
	}
	s := &Set{
		puzzles: append([]Puzzle(nil), puzzles...),
		shuffle: shuffle,
		rng:     rand.New(rand.NewSource(seed)),
		pos:     -1,
	}
	s.reorder()
	return s, nil
}

func (s *Set) Len() int { return len(s.puzzles) }

// Next advances to the next puzzle.
func (s *Set) Next() Puzzle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos++
	if s.pos >= len(s.order) {
		s.reorder()
		s.pos = 0
	}
	return s.puzzles[s.order[s.pos]]
}

// Current returns the puzzle last handed out, for restarts. Before the first Next it
// behaves like Next.
func (s *Set) Current() Puzzle {
	s.mu.Lock()
	if s.pos >= 0 {
		p := s.puzzles[s.order[s.pos]]
		s.mu.Unlock()
		return p
	}
	s.mu.Unlock()
	return s.Next()
}

func (s *Set) reorder() {
	s.order = make([]int, len(s.puzzles))
	for i := range s.order {
		s.order[i] = i
	}
	if s.shuffle {
		s.rng.Shuffle(len(s.order), func(i, j int) { s.order[i], s.order[j] = s.order[j], s.order[i] })
	}
}
