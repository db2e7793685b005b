// Package tally records the votes of a single round.
package tally

import "github.com/park285/Cheese-ChessVote/internal/ballot"

// Palette is the fixed color cycle for chart slots.
var Palette = []string{
	"#ff6b6b", "#4ecdc4", "#45b7d1", "#f7dc6f",
	"#b19cd9", "#ff9ff3", "#54a0ff", "#48dbfb",
	"#fd79a8", "#a29bfe", "#6c5ce7", "#ffeaa7",
}

// Result is the outcome of Record.
type Result int

const (
	Accepted Result = iota
	NotLegalMove
	DuplicateBlocked
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case NotLegalMove:
		return "not_legal_move"
	case DuplicateBlocked:
		return "duplicate_blocked"
	default:
		return "unknown"
	}
}

// Entry is one chart slot.
type Entry struct {
	Move  string `json:"move"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// Leaders is every move tied for the highest count.
type Leaders struct {
	Moves []string `json:"moves"`
	Count int      `json:"count"`
}

type slot struct {
	move  string
	count int
	color string
}

// Tally is not safe for concurrent use; the round controller serialises access.
type Tally struct {
	legal   map[string]string // normalized -> legal form
	moves   []string
	oneVote bool

	slots  []*slot
	byMove map[string]*slot   // normalized -> slot
	votes  map[string]string  // voter -> normalized move
	total  int
}

// New creates an empty tally over legal. With oneVotePerVoter a voter cannot change
// their choice once recorded.
func New(legal []string, oneVotePerVoter bool) *Tally {
	t := &Tally{
		legal:   make(map[string]string, len(legal)),
		moves:   append([]string(nil), legal...),
		oneVote: oneVotePerVoter,
		byMove:  make(map[string]*slot),
		votes:   make(map[string]string),
	}
	for _, m := range legal {
		t.legal[ballot.Normalize(m)] = m
	}
	return t
}

// Legal returns the legal move set in oracle order.
func (t *Tally) Legal() []string { return append([]string(nil), t.moves...) }

// Record stores voter's choice, replacing an earlier one unless one-vote mode is on.
func (t *Tally) Record(voterID, move string) Result {
	key := ballot.Normalize(move)
	form, ok := t.legal[key]
	if !ok {
		return NotLegalMove
	}
	prev, voted := t.votes[voterID]
	if voted {
		if t.oneVote {
			return DuplicateBlocked
		}
		if prev == key {
			return Accepted
		}
		t.byMove[prev].count--
		t.total--
	}
	s := t.byMove[key]
	if s == nil {
		s = &slot{move: form, color: Palette[len(t.slots)%len(Palette)]}
		t.byMove[key] = s
		t.slots = append(t.slots, s)
	}
	s.count++
	t.total++
	t.votes[voterID] = key
	return Accepted
}

// Choice returns the move currently recorded for voter.
func (t *Tally) Choice(voterID string) (string, bool) {
	key, ok := t.votes[voterID]
	if !ok {
		return "", false
	}
	return t.byMove[key].move, true
}

func (t *Tally) TotalVotes() int { return t.total }

// Leaders lists the tied leaders in snapshot order.
func (t *Tally) Leaders() Leaders {
	out := Leaders{Moves: []string{}}
	for _, s := range t.slots {
		switch {
		case s.count <= 0:
		case s.count > out.Count:
			out.Count = s.count
			out.Moves = append(out.Moves[:0], s.move)
		case s.count == out.Count:
			out.Moves = append(out.Moves, s.move)
		}
	}
	return out
}

// Snapshot lists moves with at least one vote in first-seen order. A move whose
// count drops to zero keeps its slot and color if it is voted for again.
func (t *Tally) Snapshot() []Entry {
	out := make([]Entry, 0, len(t.slots))
	for _, s := range t.slots {
		if s.count > 0 {
			out = append(out, Entry{Move: s.move, Count: s.count, Color: s.color})
		}
	}
	return out
}

// Uniform is the synthetic one-vote-per-legal-move snapshot used when nobody voted.
func Uniform(legal []string) []Entry {
	out := make([]Entry, 0, len(legal))
	for i, m := range legal {
		out = append(out, Entry{Move: m, Count: 1, Color: Palette[i%len(Palette)]})
	}
	return out
}
