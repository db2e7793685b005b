package votedto

// TallyEntry is one bar of the overlay tally.
type TallyEntry struct {
	Move  string `json:"move"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

type Move struct {
	SAN       string `json:"san"`
	UCI       string `json:"uci"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// RoundState is the overlay snapshot served on GET /state.
type RoundState struct {
	Phase       string       `json:"phase"`
	Round       int          `json:"round"`
	Turn        string       `json:"turn"`
	Legal       []string     `json:"legal"`
	Tally       []TallyEntry `json:"tally"`
	Leaders     []string     `json:"leaders"`
	LeaderVotes int          `json:"leader_votes"`
	TotalVotes  int          `json:"total_votes"`
	RemainingMS int64        `json:"remaining_ms"`
	Paused      bool         `json:"paused"`
	Immediate   bool         `json:"immediate"`
	Outcome     string       `json:"outcome,omitempty"`
	LastMove    *Move        `json:"last_move,omitempty"`
	Fault       string       `json:"fault,omitempty"`
	FEN         string       `json:"fen,omitempty"`
	EpisodeID   string       `json:"episode_id,omitempty"`
}
