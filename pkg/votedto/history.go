package votedto

import "time"

// Episode is a finished game or puzzle attempt as served on GET /history.
type Episode struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Mode      string    `json:"mode"`
	Puzzle    bool      `json:"puzzle"`
	PuzzleID  string    `json:"puzzle_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Winner    string    `json:"winner,omitempty"`
	MovesSAN  []string  `json:"moves_san"`
	Rounds    int       `json:"rounds"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
