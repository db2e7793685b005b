package domain

import (
	"strings"
	"time"
)

// Team identifies a side of the board. White moves first.
type Team int

const (
	TeamWhite Team = 0
	TeamBlack Team = 1
)

func (t Team) Other() Team {
	if t == TeamWhite {
		return TeamBlack
	}
	return TeamWhite
}

func (t Team) String() string {
	if t == TeamBlack {
		return "black"
	}
	return "white"
}

// ParseTeam accepts white/black, w/b and 0/1.
func ParseTeam(s string) (Team, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w", "0":
		return TeamWhite, true
	case "black", "b", "1":
		return TeamBlack, true
	default:
		return TeamWhite, false
	}
}

// AppliedMove is what the rules oracle reports after a move lands on the board.
type AppliedMove struct {
	SAN       string `json:"san"`
	UCI       string `json:"uci"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Terminal describes whether the position ended the game.
type Terminal struct {
	Checkmate bool
	Stalemate bool
	Draw      bool
}

func (t Terminal) Ended() bool { return t.Checkmate || t.Stalemate || t.Draw }

// Outcome is the reason an episode ended.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeCheckmate  Outcome = "checkmate"
	OutcomeDraw       Outcome = "draw"
	OutcomeStalemate  Outcome = "stalemate"
	OutcomePuzzleWon  Outcome = "puzzle-won"
	OutcomePuzzleLost Outcome = "puzzle-lost"
)

// OutcomeFor maps a terminal position to an episode outcome. Checkmate wins over the
// draw flags because the oracle may report both on the final position.
func OutcomeFor(t Terminal) Outcome {
	switch {
	case t.Checkmate:
		return OutcomeCheckmate
	case t.Stalemate:
		return OutcomeStalemate
	case t.Draw:
		return OutcomeDraw
	default:
		return OutcomeNone
	}
}

// EpisodeRecord is the persisted summary of one finished game or puzzle attempt.
type EpisodeRecord struct {
	ID        string
	Channel   string
	Mode      GameMode
	Puzzle    bool
	PuzzleID  string
	StartFEN  string
	Outcome   Outcome
	Winner    string
	MovesUCI  []string
	MovesSAN  []string
	Rounds    int
	StartedAt time.Time
	EndedAt   time.Time
}
