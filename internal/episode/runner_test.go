package episode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/puzzle"
	"github.com/park285/Cheese-ChessVote/internal/resolve"
	"github.com/park285/Cheese-ChessVote/internal/round"
	"github.com/park285/Cheese-ChessVote/internal/roundtimer"
	"github.com/park285/Cheese-ChessVote/internal/rules"
)

// after 1.f3 e5 2.g4, black mates with Qh4
const foolsMateFEN = "rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq g3 0 2"

const puzzleYAML = `
puzzles:
  - id: back-rank
    fen: "6k1/5ppp/8/8/8/8/5PPP/R5K1 b - - 0 1"
    moves: "g8h8 a1a8"
  - id: scholars-mate
    fen: startpos
    moves: [e2e4, e7e5, d1h5, b8c6, f1c4, g8f6, h5f7]
`

type memStore struct {
	ch chan domain.EpisodeRecord
}

func (m *memStore) SaveEpisode(_ context.Context, rec domain.EpisodeRecord) error {
	m.ch <- rec
	return nil
}

func immediateController(t *testing.T, clock *roundtimer.FakeClock, puzzleMode bool) *round.Controller {
	t.Helper()
	cfg := round.DefaultConfig()
	cfg.TimerEnabled = false
	cfg.PuzzleMode = puzzleMode
	cfg.PuzzleReplyDelay = time.Second
	ctl, err := round.New(cfg, round.WithClock(clock))
	if err != nil {
		t.Fatalf("round.New: %v", err)
	}
	return ctl
}

func vote(text string) domain.VoteEvent {
	return domain.VoteEvent{Voter: domain.Voter{ID: "viewer"}, RawText: text}
}

func TestGameEpisodeRecordedAndRestarted(t *testing.T) {
	clock := roundtimer.NewFakeClock(time.Unix(100, 0))
	ctl := immediateController(t, clock, false)
	store := &memStore{ch: make(chan domain.EpisodeRecord, 1)}
	var nextWait time.Duration
	r := New(ctl, Config{Channel: "streamer", Mode: domain.ModeNormal, StartFEN: foolsMateFEN, PauseAfterEnd: 10 * time.Second},
		WithClock(clock), WithStore(store), WithNextHook(func(_ bool, wait time.Duration) { nextWait = wait }))
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := r.EpisodeID()
	if first == "" || r.FEN() != foolsMateFEN {
		t.Fatalf("episode not started: id=%q fen=%q", first, r.FEN())
	}

	if res := ctl.Submit(vote("Qh4#")); !res.Accepted {
		t.Fatalf("vote rejected: %+v", res)
	}
	if st := ctl.State(); st.Phase != round.PhaseEpisodeEnded || st.Outcome != domain.OutcomeCheckmate {
		t.Fatalf("expected checkmate, got %+v", st)
	}

	var rec domain.EpisodeRecord
	select {
	case rec = <-store.ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("episode not saved")
	}
	if rec.ID != first || rec.Winner != "black" || rec.Channel != "streamer" || rec.Rounds != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.MovesUCI) != 1 || rec.MovesUCI[0] != "d8h4" || rec.StartFEN != foolsMateFEN {
		t.Fatalf("unexpected moves: %+v", rec)
	}
	if nextWait != 10*time.Second {
		t.Fatalf("next hook wait = %v", nextWait)
	}

	clock.Advance(9 * time.Second)
	if r.EpisodeID() != first {
		t.Fatalf("next episode started before the pause elapsed")
	}
	clock.Advance(time.Second)
	if r.EpisodeID() == first {
		t.Fatalf("next episode not started")
	}
	if st := ctl.State(); st.Phase != round.PhaseOpen || st.Round != 1 {
		t.Fatalf("new episode not open: %+v", st)
	}
	r.Stop()
}

func TestPuzzleEpisodesAdvanceAndReload(t *testing.T) {
	ps, err := puzzle.Parse([]byte(puzzleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	set, err := puzzle.NewSet(ps, false, 1)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	clock := roundtimer.NewFakeClock(time.Unix(0, 0))
	ctl := immediateController(t, clock, true)
	r := New(ctl, Config{Channel: "streamer", Puzzles: set, PauseAfterEnd: 5 * time.Second}, WithClock(clock))
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := ctl.State(); st.Turn != domain.TeamWhite || st.LastMove == nil || st.LastMove.UCI != "g8h8" {
		t.Fatalf("opening move not played: %+v", st)
	}
	if res := ctl.Submit(vote("Ra8")); !res.Accepted {
		t.Fatalf("vote rejected: %+v", res)
	}
	if st := ctl.State(); st.Outcome != domain.OutcomePuzzleWon {
		t.Fatalf("expected puzzle won, got %+v", st)
	}

	clock.Advance(5 * time.Second)
	if st := ctl.State(); st.Phase != round.PhaseOpen || st.Turn != domain.TeamBlack {
		t.Fatalf("second puzzle should open with black to move: %+v", st)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if st := ctl.State(); st.LastMove == nil || st.LastMove.UCI != "e2e4" {
		t.Fatalf("reload should restart the current puzzle: %+v", st)
	}
	if err := r.NewEpisode(); err != nil {
		t.Fatalf("NewEpisode: %v", err)
	}
	if st := ctl.State(); st.LastMove == nil || st.LastMove.UCI != "g8h8" {
		t.Fatalf("new should wrap to the first puzzle: %+v", st)
	}
	r.Stop()
}

type fakeController struct {
	mu     sync.Mutex
	cb     round.EventCallback
	starts int
}

func (f *fakeController) StartEpisode(round.Oracle, *resolve.Playback) error {
	f.mu.Lock()
	f.starts++
	f.mu.Unlock()
	return nil
}

func (f *fakeController) OnEvent(cb round.EventCallback) int {
	f.cb = cb
	return 1
}

func (f *fakeController) RemoveEventCallback(int) { f.cb = nil }

func (f *fakeController) Stop() {}

func (f *fakeController) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func TestFaultHaltsAutomaticProgression(t *testing.T) {
	clock := roundtimer.NewFakeClock(time.Unix(0, 0))
	ctl := &fakeController{}
	r := New(ctl, Config{PauseAfterEnd: time.Second}, WithClock(clock))
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctl.cb(round.Event{Kind: round.EventEpisodeEnded, Outcome: domain.OutcomeDraw})
	ctl.cb(round.Event{Kind: round.EventFault, Err: errors.New("broken oracle")})
	clock.Advance(time.Minute)
	if n := ctl.startCount(); n != 1 || !r.Halted() {
		t.Fatalf("starts=%d halted=%v", n, r.Halted())
	}
	if err := r.NewEpisode(); err != nil {
		t.Fatalf("NewEpisode: %v", err)
	}
	if ctl.startCount() != 2 || r.Halted() {
		t.Fatalf("new episode should clear the halt")
	}
}

func TestBadStartFEN(t *testing.T) {
	r := New(&fakeController{}, Config{StartFEN: "not a fen"})
	if err := r.Start(); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := rules.FromFEN(foolsMateFEN); err != nil {
		t.Fatalf("fixture FEN invalid: %v", err)
	}
}
