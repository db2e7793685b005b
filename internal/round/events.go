package round

import (
	"time"

	"github.com/park285/Cheese-ChessVote/internal/access"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/tally"
)

// Phase is the controller state.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseOpen         Phase = "open"
	PhaseClosing      Phase = "closing"
	PhaseResolving    Phase = "resolving"
	PhaseApplied      Phase = "applied"
	PhaseEpisodeEnded Phase = "episode_ended"
	PhaseMirror       Phase = "mirror"
	PhaseHalted       Phase = "halted"
)

// EventKind names an outbound event.
type EventKind string

const (
	EventRoundOpened  EventKind = "round_opened"
	EventTallyChanged EventKind = "tally_changed"
	EventTimerTick    EventKind = "timer_tick"
	EventPaused       EventKind = "paused"
	EventResumed      EventKind = "resumed"
	EventWheelSpin    EventKind = "wheel_spin"
	EventMoveApplied  EventKind = "move_applied"
	EventEpisodeEnded EventKind = "episode_ended"
	EventFault        EventKind = "fault"
	EventStopped      EventKind = "stopped"
)

// MoveSource tells who decided an applied move.
type MoveSource string

const (
	SourceVote   MoveSource = "vote"
	SourcePuzzle MoveSource = "puzzle"
	SourceRemote MoveSource = "remote"
)

// Spin carries a wheel result so a presenter animates the same pick.
type Spin struct {
	Wedges   []tally.Entry
	Pick     int
	Move     string
	Duration time.Duration
}

// Event is delivered to every callback in emission order. Fields not relevant to
// Kind are zero. Turn is always the side to move after the event.
type Event struct {
	Kind      EventKind
	Round     int
	Turn      domain.Team
	Legal     []string
	Mirror    bool
	Immediate bool
	Remaining time.Duration
	Snapshot  []tally.Entry
	Leaders   tally.Leaders
	Total     int
	Votes     int
	Spin      *Spin
	Move      domain.AppliedMove
	Source    MoveSource
	Outcome   domain.Outcome
	Expected  string
	Err       error
}

type EventCallback func(ev Event)

type callbackEntry struct {
	id       int
	callback EventCallback
}

// Rejection is why Submit dropped a vote.
type Rejection string

const (
	RejectNone             Rejection = ""
	RejectNotLegalMove     Rejection = "not_legal_move"
	RejectRoundNotOpen     Rejection = "round_not_open"
	RejectDuplicateBlocked Rejection = "duplicate_blocked"
	RejectAccessDenied     Rejection = "access_denied"
)

// SubmitResult is the return value of Submit; rejections are never errors.
type SubmitResult struct {
	Accepted  bool
	Rejection Rejection
	Reason    access.Reason
	Move      string
}

// State is a read-only view of the controller.
type State struct {
	Phase     Phase
	Round     int
	Turn      domain.Team
	Legal     []string
	Snapshot  []tally.Entry
	Leaders   tally.Leaders
	Total     int
	Remaining time.Duration
	Paused    bool
	Immediate bool
	Outcome   domain.Outcome
	LastMove  *domain.AppliedMove
	Fault     string
}
