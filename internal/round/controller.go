// Package round runs the voting round state machine for one room.
package round

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/access"
	"github.com/park285/Cheese-ChessVote/internal/ballot"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/resolve"
	"github.com/park285/Cheese-ChessVote/internal/roundtimer"
	"github.com/park285/Cheese-ChessVote/internal/tally"
	"go.uber.org/zap"
)

// Oracle is the chess rules collaborator. The controller reads legal moves and the
// side to move from it and asks it to apply winning moves.
type Oracle interface {
	LegalMoves() []string
	Turn() domain.Team
	ApplyMove(move string) (domain.AppliedMove, error)
	Terminal() domain.Terminal
}

// lastMoveOracle is implemented by oracles that start mid-game, such as puzzles.
type lastMoveOracle interface {
	LastMove() (domain.AppliedMove, bool)
}

// uciOracle is implemented by oracles that can translate coordinate votes.
type uciOracle interface {
	SANForUCI(uci string) (string, bool)
}

var (
	ErrRoundNotOpen  = errors.New("round is not open")
	ErrNotMirroring  = errors.New("controller is not mirroring a remote turn")
	ErrNoEpisode     = errors.New("no episode in progress")
	ErrNoPuzzle      = errors.New("puzzle mode requires a puzzle playback")
	ErrTimerDisabled = errors.New("round has no timer")
)

type Controller struct {
	cfg    Config
	policy *access.Policy
	clock  roundtimer.Clock
	timer  *roundtimer.Timer
	rng    resolve.RNG
	logger *zap.Logger

	mu        sync.Mutex
	phase     Phase
	gen       uint64
	round     int
	oracle    Oracle
	puzzle    *resolve.Playback
	tally     *tally.Tally
	turn      domain.Team
	immediate bool
	paused    bool
	pending   roundtimer.Stopper
	outcome   domain.Outcome
	lastMove  *domain.AppliedMove
	fault     error

	cbM      sync.RWMutex
	cbs      []callbackEntry
	nextCB   int
	queue    []Event
	draining bool
}

type Option func(*Controller)

func WithClock(c roundtimer.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

// WithRNG injects the wheel's random source. Calls happen under the controller
// lock, so a plain *rand.Rand is fine.
func WithRNG(r resolve.RNG) Option { return func(ctl *Controller) { ctl.rng = r } }

func WithLogger(l *zap.Logger) Option { return func(ctl *Controller) { ctl.logger = l } }

// New validates cfg and builds the access policy. Missing participants for a
// two-party mode come back as *access.ConfigError.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if cfg.GameMode == "" {
		cfg.GameMode = domain.ModeNormal
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	policy, err := access.New(cfg.accessConfig())
	if err != nil {
		return nil, err
	}
	c := &Controller{cfg: cfg, policy: policy, phase: PhaseIdle}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = roundtimer.Real()
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.timer = roundtimer.New(c.clock)
	return c, nil
}

func (c *Controller) Config() Config         { return c.cfg }
func (c *Controller) Policy() *access.Policy { return c.policy }

// OnEvent registers cb and returns an id for RemoveEventCallback.
func (c *Controller) OnEvent(cb EventCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCB++
	c.cbs = append(c.cbs, callbackEntry{id: c.nextCB, callback: cb})
	return c.nextCB
}

func (c *Controller) RemoveEventCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, e := range c.cbs {
		if e.id == id {
			c.cbs = append(c.cbs[:i], c.cbs[i+1:]...)
			return
		}
	}
}

// StartEpisode begins a game or puzzle on oracle and opens the first round. Any
// round in progress is abandoned. puzzle is required in puzzle mode and is
// advanced in place as the solution is played.
func (c *Controller) StartEpisode(oracle Oracle, puzzle *resolve.Playback) error {
	if oracle == nil {
		return errors.New("start episode: nil oracle")
	}
	if c.cfg.PuzzleMode && puzzle == nil {
		return ErrNoPuzzle
	}
	c.mu.Lock()
	c.cancelLocked()
	c.oracle = oracle
	c.puzzle = puzzle
	c.round = 0
	c.outcome = domain.OutcomeNone
	c.lastMove = nil
	if lm, ok := oracle.(lastMoveOracle); ok {
		if am, played := lm.LastMove(); played {
			c.lastMove = &am
		}
	}
	c.fault = nil
	c.logger.Info("episode_start",
		zap.String("mode", string(c.cfg.GameMode)),
		zap.Bool("puzzle", c.cfg.PuzzleMode),
		zap.String("strategy", c.cfg.Strategy().String()),
	)
	c.openLocked()
	c.mu.Unlock()
	c.flush()
	return nil
}

// Submit offers one chat message as a vote. Rejections are returned, never raised.
func (c *Controller) Submit(ev domain.VoteEvent) SubmitResult {
	c.mu.Lock()
	res := c.submitLocked(ev)
	c.mu.Unlock()
	c.flush()
	return res
}

func (c *Controller) submitLocked(ev domain.VoteEvent) SubmitResult {
	if c.phase != PhaseOpen {
		return SubmitResult{Rejection: RejectRoundNotOpen}
	}
	d := c.policy.CanVote(ev.Voter, ev.SourceChannel, access.RoundContext{TurnOwner: c.turn})
	if !d.Allowed {
		c.logger.Debug("vote_rejected", zap.String("voter", ev.Voter.ID), zap.String("reason", string(d.Reason)))
		return SubmitResult{Rejection: RejectAccessDenied, Reason: d.Reason}
	}
	var resolveUCI ballot.UCIResolver
	if u, ok := c.oracle.(uciOracle); ok {
		resolveUCI = u.SANForUCI
	}
	move, ok := ballot.Parse(ev.RawText, c.tally.Legal(), resolveUCI)
	if !ok {
		return SubmitResult{Rejection: RejectNotLegalMove}
	}
	switch c.tally.Record(voterKey(ev.Voter.ID), move) {
	case tally.NotLegalMove:
		return SubmitResult{Rejection: RejectNotLegalMove}
	case tally.DuplicateBlocked:
		return SubmitResult{Rejection: RejectDuplicateBlocked, Move: move}
	}
	c.logger.Debug("vote_accepted", zap.String("voter", ev.Voter.ID), zap.String("move", move), zap.Int("round", c.round))
	c.emitTallyLocked()
	if c.immediate {
		_ = c.closeLocked()
	}
	return SubmitResult{Accepted: true, Move: move}
}

// ForceResolve closes the open round now, as if its timer expired. A broken oracle
// contract is returned here and also halts the controller.
func (c *Controller) ForceResolve() error {
	c.mu.Lock()
	var err error
	if c.phase != PhaseOpen {
		err = ErrRoundNotOpen
	} else {
		err = c.closeLocked()
	}
	c.mu.Unlock()
	c.flush()
	return err
}

// Pause freezes the round countdown.
func (c *Controller) Pause() error {
	c.mu.Lock()
	err := c.pauseLocked(true)
	c.mu.Unlock()
	c.flush()
	return err
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	err := c.pauseLocked(false)
	c.mu.Unlock()
	c.flush()
	return err
}

func (c *Controller) pauseLocked(pause bool) error {
	if c.phase != PhaseOpen {
		return ErrRoundNotOpen
	}
	if c.immediate {
		return ErrTimerDisabled
	}
	if pause == c.paused {
		return nil
	}
	c.paused = pause
	kind := EventResumed
	if pause {
		c.timer.Pause()
		kind = EventPaused
	} else {
		c.timer.Resume()
	}
	c.enqueue(Event{Kind: kind, Round: c.round, Turn: c.turn, Remaining: c.timer.Remaining()})
	return nil
}

// Extend adds time to the open round, capped at twice the vote duration.
func (c *Controller) Extend(d time.Duration) error {
	c.mu.Lock()
	defer c.flush()
	defer c.mu.Unlock()
	if c.phase != PhaseOpen {
		return ErrRoundNotOpen
	}
	if c.immediate {
		return ErrTimerDisabled
	}
	c.timer.Extend(d)
	c.enqueue(Event{Kind: EventTimerTick, Round: c.round, Turn: c.turn, Remaining: c.timer.Remaining()})
	return nil
}

// Stop abandons the episode and cancels every pending timer.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.cancelLocked()
	c.phase = PhaseIdle
	c.enqueue(Event{Kind: EventStopped, Round: c.round})
	c.mu.Unlock()
	c.flush()
}

// ApplyRemoteMove plays the partner's move while mirroring their turn.
func (c *Controller) ApplyRemoteMove(move string) error {
	c.mu.Lock()
	defer c.flush()
	defer c.mu.Unlock()
	if c.phase != PhaseMirror {
		return ErrNotMirroring
	}
	am, err := c.oracle.ApplyMove(move)
	if err != nil {
		c.logger.Warn("remote_move_rejected", zap.String("move", move), zap.Error(err))
		return fmt.Errorf("remote move %q: %w", move, err)
	}
	c.recordAppliedLocked(Event{Move: am, Source: SourceRemote})
	if term := c.oracle.Terminal(); term.Ended() {
		c.endLocked(domain.OutcomeFor(term), "")
		return nil
	}
	c.openLocked()
	return nil
}

// State is safe to call from any goroutine.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Phase:     c.phase,
		Round:     c.round,
		Turn:      c.turn,
		Paused:    c.paused,
		Immediate: c.immediate,
		Outcome:   c.outcome,
		LastMove:  c.lastMove,
		Leaders:   tally.Leaders{Moves: []string{}},
	}
	if c.tally != nil {
		st.Legal = c.tally.Legal()
		st.Snapshot = c.tally.Snapshot()
		st.Leaders = c.tally.Leaders()
		st.Total = c.tally.TotalVotes()
	}
	if c.phase == PhaseOpen && !c.immediate {
		st.Remaining = c.timer.Remaining()
	}
	if c.fault != nil {
		st.Fault = c.fault.Error()
	}
	return st
}

// Err returns the fault that halted the controller, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fault
}

func (c *Controller) openLocked() {
	c.cancelLocked()
	if term := c.oracle.Terminal(); term.Ended() {
		c.endLocked(domain.OutcomeFor(term), "")
		return
	}
	c.turn = c.oracle.Turn()
	if c.cfg.Relay && c.turn != c.cfg.LocalTeam {
		c.phase = PhaseMirror
		c.immediate = false
		c.logger.Info("round_mirror", zap.String("turn", c.turn.String()))
		c.enqueue(Event{Kind: EventRoundOpened, Round: c.round, Turn: c.turn, Mirror: true})
		return
	}
	legal := c.oracle.LegalMoves()
	if len(legal) == 0 {
		c.faultLocked(fmt.Errorf("open round: %w", resolve.ErrNoLegalMoves))
		return
	}
	c.round++
	c.tally = tally.New(legal, c.cfg.OneVotePerVoter)
	c.immediate = c.cfg.immediate(c.turn)
	c.paused = false
	c.phase = PhaseOpen

	ev := Event{Kind: EventRoundOpened, Round: c.round, Turn: c.turn, Legal: append([]string(nil), legal...), Immediate: c.immediate}
	if !c.immediate {
		gen := c.gen
		c.timer.Start(c.cfg.VoteDuration,
			func(rem time.Duration) { c.onTick(gen, rem) },
			func() { c.onExpire(gen) },
		)
		ev.Remaining = c.cfg.VoteDuration
	}
	c.logger.Info("round_open",
		zap.Int("round", c.round),
		zap.String("turn", c.turn.String()),
		zap.Int("legal", len(legal)),
		zap.Bool("immediate", c.immediate),
	)
	c.enqueue(ev)
	c.emitTallyLocked()
}

func (c *Controller) onTick(gen uint64, rem time.Duration) {
	c.mu.Lock()
	if gen == c.gen && c.phase == PhaseOpen {
		c.enqueue(Event{Kind: EventTimerTick, Round: c.round, Turn: c.turn, Remaining: rem})
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) onExpire(gen uint64) {
	c.mu.Lock()
	if gen == c.gen && c.phase == PhaseOpen {
		_ = c.closeLocked()
	}
	c.mu.Unlock()
	c.flush()
}

// closeLocked moves Open -> Closing -> Resolving and acts on the result.
func (c *Controller) closeLocked() error {
	c.timer.Stop()
	c.phase = PhaseClosing
	c.emitTallyLocked()

	c.phase = PhaseResolving
	res, err := resolve.Resolve(c.cfg.Strategy(), c.cfg.PuzzleMode, c.tally, c.rng)
	if err != nil {
		return c.faultLocked(fmt.Errorf("resolve round %d: %w", c.round, err))
	}
	c.logger.Info("round_resolved",
		zap.Int("round", c.round),
		zap.String("kind", res.Kind.String()),
		zap.String("move", res.Move),
		zap.Bool("spun", res.Spun),
		zap.Int("votes", c.tally.TotalVotes()),
	)
	if res.Kind == resolve.PuzzleFailed {
		expected, _ := c.puzzle.Expected()
		c.endLocked(domain.OutcomePuzzleLost, expected)
		return nil
	}
	if res.Spun && c.cfg.WheelAnimation > 0 {
		gen := c.gen
		move := res.Move
		c.enqueue(Event{
			Kind:  EventWheelSpin,
			Round: c.round,
			Turn:  c.turn,
			Spin:  &Spin{Wedges: res.Wedges, Pick: res.Pick, Move: res.Move, Duration: c.cfg.WheelAnimation},
		})
		c.pending = c.clock.AfterFunc(c.cfg.WheelAnimation, func() { c.afterSpin(gen, move) })
		return nil
	}
	return c.applyVotedLocked(res.Move)
}

func (c *Controller) afterSpin(gen uint64, move string) {
	c.mu.Lock()
	if gen == c.gen && c.phase == PhaseResolving {
		c.pending = nil
		_ = c.applyVotedLocked(move)
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) applyVotedLocked(move string) error {
	expected, _ := c.puzzle.Expected()
	votes, total := 0, 0
	if c.tally != nil {
		total = c.tally.TotalVotes()
		for _, e := range c.tally.Snapshot() {
			if e.Move == move {
				votes = e.Count
			}
		}
	}
	am, err := c.oracle.ApplyMove(move)
	if err != nil {
		return c.faultLocked(fmt.Errorf("apply resolved move %q: %w", move, err))
	}
	c.recordAppliedLocked(Event{Move: am, Source: SourceVote, Votes: votes, Total: total})

	if c.cfg.PuzzleMode {
		switch chk := c.puzzle.Check(am); chk.Kind {
		case resolve.PuzzleFailed:
			c.endLocked(domain.OutcomePuzzleLost, expected)
			return nil
		case resolve.PuzzleSolved:
			c.endLocked(domain.OutcomePuzzleWon, "")
			return nil
		}
		if term := c.oracle.Terminal(); term.Ended() {
			c.endLocked(domain.OutcomePuzzleWon, "")
			return nil
		}
		gen := c.gen
		c.pending = c.clock.AfterFunc(c.cfg.PuzzleReplyDelay, func() { c.afterReplyDelay(gen) })
		return nil
	}

	if term := c.oracle.Terminal(); term.Ended() {
		c.endLocked(domain.OutcomeFor(term), "")
		return nil
	}
	c.openLocked()
	return nil
}

func (c *Controller) afterReplyDelay(gen uint64) {
	c.mu.Lock()
	defer c.flush()
	defer c.mu.Unlock()
	if gen != c.gen || c.phase != PhaseApplied {
		return
	}
	c.pending = nil
	reply, ok := c.puzzle.Reply()
	if !ok {
		c.endLocked(domain.OutcomePuzzleWon, "")
		return
	}
	am, err := c.oracle.ApplyMove(reply)
	if err != nil {
		_ = c.faultLocked(fmt.Errorf("apply puzzle reply %q: %w", reply, err))
		return
	}
	c.recordAppliedLocked(Event{Move: am, Source: SourcePuzzle})
	if c.puzzle.Done() {
		c.endLocked(domain.OutcomePuzzleWon, "")
		return
	}
	if term := c.oracle.Terminal(); term.Ended() {
		c.endLocked(domain.OutcomePuzzleLost, "")
		return
	}
	c.openLocked()
}

// recordAppliedLocked discards the round and reports ev.Move.
func (c *Controller) recordAppliedLocked(ev Event) {
	am, src := ev.Move, ev.Source
	c.phase = PhaseApplied
	c.tally = nil
	mv := am
	c.lastMove = &mv
	next := c.oracle.Turn()
	c.logger.Info("move_applied",
		zap.Int("round", c.round),
		zap.String("san", am.SAN),
		zap.String("uci", am.UCI),
		zap.String("source", string(src)),
		zap.String("next_turn", next.String()),
	)
	ev.Kind, ev.Round, ev.Turn = EventMoveApplied, c.round, next
	c.enqueue(ev)
}

func (c *Controller) endLocked(outcome domain.Outcome, expected string) {
	c.cancelLocked()
	c.phase = PhaseEpisodeEnded
	c.tally = nil
	c.outcome = outcome
	c.logger.Info("episode_end", zap.String("outcome", string(outcome)), zap.Int("rounds", c.round), zap.String("expected", expected))
	c.enqueue(Event{Kind: EventEpisodeEnded, Round: c.round, Turn: c.oracle.Turn(), Outcome: outcome, Expected: expected})
}

// faultLocked halts automatic progression until a new episode is started.
func (c *Controller) faultLocked(err error) error {
	c.cancelLocked()
	c.phase = PhaseHalted
	c.tally = nil
	c.fault = err
	c.logger.Error("round_fault", zap.Int("round", c.round), zap.Error(err))
	c.enqueue(Event{Kind: EventFault, Round: c.round, Err: err})
	return err
}

// cancelLocked invalidates every pending callback of the current round.
func (c *Controller) cancelLocked() {
	c.gen++
	c.timer.Stop()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.paused = false
}

func (c *Controller) emitTallyLocked() {
	if c.tally == nil {
		return
	}
	c.enqueue(Event{
		Kind:     EventTallyChanged,
		Round:    c.round,
		Turn:     c.turn,
		Snapshot: c.tally.Snapshot(),
		Leaders:  c.tally.Leaders(),
		Total:    c.tally.TotalVotes(),
	})
}

func (c *Controller) enqueue(ev Event) { c.queue = append(c.queue, ev) }

// flush delivers queued events outside the state lock. A callback that calls back
// into the controller only queues more events; the outer flush delivers them in order.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		batch := c.queue
		c.queue = nil
		c.mu.Unlock()

		c.cbM.RLock()
		callbacks := make([]callbackEntry, len(c.cbs))
		copy(callbacks, c.cbs)
		c.cbM.RUnlock()
		for _, ev := range batch {
			for _, entry := range callbacks {
				if entry.callback != nil {
					entry.callback(ev)
				}
			}
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

func voterKey(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "@"))
}
