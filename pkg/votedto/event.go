package votedto

// Wedge is one slice of the decision wheel.
type Wedge struct {
	Move  string `json:"move"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

type Spin struct {
	Wedges     []Wedge `json:"wedges"`
	Pick       int     `json:"pick"`
	Move       string  `json:"move"`
	DurationMS int64   `json:"duration_ms"`
}

// Event is one frame on the overlay websocket. Fields not relevant to Kind are omitted.
type Event struct {
	Kind        string       `json:"kind"`
	Round       int          `json:"round"`
	Turn        string       `json:"turn"`
	Legal       []string     `json:"legal,omitempty"`
	Mirror      bool         `json:"mirror,omitempty"`
	Immediate   bool         `json:"immediate,omitempty"`
	RemainingMS int64        `json:"remaining_ms,omitempty"`
	Tally       []TallyEntry `json:"tally,omitempty"`
	Leaders     []string     `json:"leaders,omitempty"`
	TotalVotes  int          `json:"total_votes,omitempty"`
	Votes       int          `json:"votes,omitempty"`
	Spin        *Spin        `json:"spin,omitempty"`
	Move        *Move        `json:"move,omitempty"`
	Source      string       `json:"source,omitempty"`
	Outcome     string       `json:"outcome,omitempty"`
	Expected    string       `json:"expected,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Frame wraps what the overlay websocket sends: a full state on connect, events after.
type Frame struct {
	Type  string      `json:"type"`
	State *RoundState `json:"state,omitempty"`
	Event *Event      `json:"event,omitempty"`
}
