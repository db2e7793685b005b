package relay

import (
	"time"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/tally"
)

// SessionState is the lifecycle of a relay session.
type SessionState string

const (
	StateWaiting  SessionState = "WAITING"
	StateReady    SessionState = "READY"
	StateFinished SessionState = "FINISHED"
)

// Meta is stored as JSON under relay:<code>. The host plays white, the guest black.
type Meta struct {
	Code         string       `json:"code"`
	State        SessionState `json:"state"`
	CreatedAt    time.Time    `json:"created_at"`
	Host         string       `json:"host"`
	HostChannel  string       `json:"host_channel"`
	Guest        string       `json:"guest,omitempty"`
	GuestChannel string       `json:"guest_channel,omitempty"`
}

// TeamOf reports which side a streamer plays in this session.
func (m *Meta) TeamOf(name string) (domain.Team, bool) {
	switch {
	case domain.SameUser(name, m.Host):
		return domain.TeamWhite, true
	case m.Guest != "" && domain.SameUser(name, m.Guest):
		return domain.TeamBlack, true
	default:
		return domain.TeamWhite, false
	}
}

// EnvelopeType names a message on the session bus.
type EnvelopeType string

const (
	TypeReady EnvelopeType = "ready"
	TypeVotes EnvelopeType = "votes"
	TypeMove  EnvelopeType = "move"
)

// Envelope is one bus message. Votes carry the sender's live tally; Move carries the
// sender's applied move in UCI.
type Envelope struct {
	Type   EnvelopeType  `json:"type"`
	From   domain.Team   `json:"from"`
	Round  int           `json:"round,omitempty"`
	Votes  []tally.Entry `json:"votes,omitempty"`
	Total  int           `json:"total,omitempty"`
	Move   string        `json:"move,omitempty"`
	SAN    string        `json:"san,omitempty"`
	SentAt time.Time     `json:"sent_at"`
}

var (
	ErrInvalidArgs     = errf("invalid arguments")
	ErrSessionGone     = errf("relay session not found or expired")
	ErrSessionFull     = errf("relay session already has a guest")
	ErrSessionFinished = errf("relay session finished")
	ErrNotParticipant  = errf("not a participant of this relay session")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
