package announcer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/access"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/msgcat"
	"github.com/park285/Cheese-ChessVote/internal/round"
	"github.com/park285/Cheese-ChessVote/internal/roundtimer"
	"github.com/park285/Cheese-ChessVote/internal/rules"
	"github.com/park285/Cheese-ChessVote/internal/tally"
)

type fakeSender struct {
	mu    sync.Mutex
	lines []string
}

func (s *fakeSender) SendText(_ context.Context, room, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, room+"|"+message)
	return nil
}

func (s *fakeSender) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	return NewFormatter(cat, "!")
}

func drain(a *Announcer) []string {
	var out []string
	for {
		select {
		case s := <-a.out:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestAnnouncesRoundLifecycle(t *testing.T) {
	clock := roundtimer.NewFakeClock(time.Unix(0, 0))
	ctl, err := round.New(round.DefaultConfig(), round.WithClock(clock))
	if err != nil {
		t.Fatalf("round.New: %v", err)
	}
	a := New(&fakeSender{}, newFormatter(t), "streamer")
	a.Attach(ctl)

	if err := ctl.StartEpisode(rules.NewBoard(), nil); err != nil {
		t.Fatalf("StartEpisode: %v", err)
	}
	lines := drain(a)
	if len(lines) != 1 || lines[0] != "Round 1: White to move. Vote with !vote <move> or a move number (25s)." {
		t.Fatalf("open lines: %q", lines)
	}

	ctl.Submit(domain.VoteEvent{Voter: domain.Voter{ID: "alice"}, RawText: "e4"})
	clock.Advance(15 * time.Second)
	lines = drain(a)
	if len(lines) != 1 || lines[0] != "10 seconds left. Leading: e4 (1 votes)." {
		t.Fatalf("warning lines: %q", lines)
	}
	clock.Advance(5 * time.Second)
	if lines = drain(a); len(lines) != 0 {
		t.Fatalf("warning must be sent once per round: %q", lines)
	}

	clock.Advance(5 * time.Second)
	lines = drain(a)
	want := []string{
		"White plays e4 with 1 of 1 votes.",
		"Round 2: Black to move. Vote with !vote <move> or a move number (25s).",
	}
	if len(lines) != len(want) {
		t.Fatalf("close lines: %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}

func TestNoWarningWithoutVotes(t *testing.T) {
	clock := roundtimer.NewFakeClock(time.Unix(0, 0))
	ctl, err := round.New(round.DefaultConfig(), round.WithClock(clock))
	if err != nil {
		t.Fatalf("round.New: %v", err)
	}
	a := New(&fakeSender{}, newFormatter(t), "streamer")
	a.Attach(ctl)
	_ = ctl.StartEpisode(rules.NewBoard(), nil)
	drain(a)
	clock.Advance(20 * time.Second)
	if lines := drain(a); len(lines) != 0 {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestFormatsOutcomes(t *testing.T) {
	f := newFormatter(t)
	cases := []struct {
		ev   round.Event
		want string
	}{
		{round.Event{Kind: round.EventEpisodeEnded, Outcome: domain.OutcomeCheckmate, Turn: domain.TeamWhite, Round: 2}, "Checkmate! Black wins after 2 rounds."},
		{round.Event{Kind: round.EventEpisodeEnded, Outcome: domain.OutcomeStalemate}, "Stalemate. The game is drawn."},
		{round.Event{Kind: round.EventEpisodeEnded, Outcome: domain.OutcomePuzzleLost, Expected: "Qh5"}, "Puzzle failed. The solution was Qh5."},
		{round.Event{Kind: round.EventEpisodeEnded, Outcome: domain.OutcomePuzzleLost}, "Puzzle failed."},
		{round.Event{Kind: round.EventMoveApplied, Source: round.SourcePuzzle, Move: domain.AppliedMove{SAN: "Nc6"}}, "Puzzle reply: Nc6."},
		{round.Event{Kind: round.EventRoundOpened, Mirror: true, Turn: domain.TeamBlack}, "Waiting for the partner room to play Black's move."},
		{round.Event{Kind: round.EventWheelSpin, Spin: &round.Spin{Wedges: make([]tally.Entry, 3)}}, "No clear winner. Spinning the wheel over 3 moves..."},
		{round.Event{Kind: round.EventFault, Err: errors.New("no legal moves")}, "Voting halted: no legal moves"},
		{round.Event{Kind: round.EventTimerTick}, ""},
	}
	for _, tc := range cases {
		got, err := f.Event(tc.ev)
		if err != nil {
			t.Fatalf("%s: %v", tc.ev.Kind, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.ev.Kind, got, tc.want)
		}
	}
}

func TestRejectRepliesOnlyWhenEnabled(t *testing.T) {
	res := round.SubmitResult{Rejection: round.RejectAccessDenied, Reason: access.ReasonNotFollower}
	off := New(&fakeSender{}, newFormatter(t), "r")
	off.Reject("bob", res)
	if lines := drain(off); len(lines) != 0 {
		t.Fatalf("replies disabled, got %q", lines)
	}

	on := New(&fakeSender{}, newFormatter(t), "r", WithRejectionReplies(true))
	on.Reject("bob", res)
	on.Reject("bob", round.SubmitResult{Rejection: round.RejectRoundNotOpen})
	lines := drain(on)
	if len(lines) != 1 || lines[0] != "@bob you cannot vote on this turn (not follower)." {
		t.Fatalf("got %q", lines)
	}
}

func TestMovesListNumbersAndTruncates(t *testing.T) {
	f := newFormatter(t)
	got, err := f.Moves([]string{"e4", "d4", "Nf3"})
	if err != nil || got != "Legal moves: 1.e4 2.d4 3.Nf3" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if s := formatMoves([]string{"a", "b", "c"}, 2); s != "1.a 2.b (+1 more)" {
		t.Fatalf("truncated: %q", s)
	}
	if got, _ := f.Moves(nil); got != "No round is open." {
		t.Fatalf("empty: %q", got)
	}
}

func TestRunSendsQueuedLines(t *testing.T) {
	s := &fakeSender{}
	a := New(s, newFormatter(t), "room")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	a.Say("hello")
	a.Say("   ")
	deadline := time.Now().Add(2 * time.Second)
	for len(s.got()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if got := s.got(); len(got) != 1 || got[0] != "room|hello" {
		t.Fatalf("sent %q", got)
	}
}
