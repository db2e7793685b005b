// Package episode sequences games and puzzles on one round controller: it starts
// each episode, records the result and starts the next after a pause.
package episode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/puzzle"
	"github.com/park285/Cheese-ChessVote/internal/resolve"
	"github.com/park285/Cheese-ChessVote/internal/round"
	"github.com/park285/Cheese-ChessVote/internal/roundtimer"
	"github.com/park285/Cheese-ChessVote/internal/rules"
)

const saveTimeout = 5 * time.Second

// Store persists finished episodes.
type Store interface {
	SaveEpisode(ctx context.Context, rec domain.EpisodeRecord) error
}

// Controller is the part of round.Controller the runner drives.
type Controller interface {
	StartEpisode(oracle round.Oracle, puzzle *resolve.Playback) error
	OnEvent(cb round.EventCallback) int
	RemoveEventCallback(id int)
	Stop()
}

type Config struct {
	Channel       string
	Mode          domain.GameMode
	StartFEN      string
	PauseAfterEnd time.Duration
	// Puzzles switches the runner to puzzle episodes.
	Puzzles *puzzle.Set
}

type Runner struct {
	ctl    Controller
	cfg    Config
	clock  roundtimer.Clock
	store  Store
	logger *zap.Logger
	onNext func(puzzle bool, wait time.Duration)

	mu      sync.Mutex
	cbID    int
	board   *rules.Board
	current *puzzle.Puzzle
	id      string
	started time.Time
	pending roundtimer.Stopper
	gen     uint64
	halted  bool
	saves   sync.WaitGroup
}

type Option func(*Runner)

func WithClock(c roundtimer.Clock) Option { return func(r *Runner) { r.clock = c } }

func WithStore(s Store) Option { return func(r *Runner) { r.store = s } }

func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithNextHook is called when the next episode is scheduled.
func WithNextHook(fn func(puzzle bool, wait time.Duration)) Option {
	return func(r *Runner) { r.onNext = fn }
}

func New(ctl Controller, cfg Config, opts ...Option) *Runner {
	r := &Runner{ctl: ctl, cfg: cfg, clock: roundtimer.Real(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the controller and begins the first episode.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.cbID == 0 {
		r.cbID = r.ctl.OnEvent(r.handle)
	}
	r.mu.Unlock()
	return r.begin(r.firstPuzzle)
}

// Stop cancels a scheduled episode, stops the controller and waits for pending saves.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.cancelLocked()
	if r.cbID != 0 {
		r.ctl.RemoveEventCallback(r.cbID)
		r.cbID = 0
	}
	r.mu.Unlock()
	r.ctl.Stop()
	r.saves.Wait()
}

// NewEpisode abandons the current episode for a new game or the next puzzle.
func (r *Runner) NewEpisode() error { return r.begin(r.nextPuzzle) }

// Reload restarts the current puzzle, or the game from its start position.
func (r *Runner) Reload() error { return r.begin(r.firstPuzzle) }

func (r *Runner) FEN() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.board == nil {
		return ""
	}
	return r.board.FEN()
}

func (r *Runner) EpisodeID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// Legal lists the legal moves of the live position, for the moves command.
func (r *Runner) Legal() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.board == nil {
		return nil
	}
	return r.board.LegalMoves()
}

func (r *Runner) Halted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halted
}

func (r *Runner) firstPuzzle(s *puzzle.Set) puzzle.Puzzle { return s.Current() }

func (r *Runner) nextPuzzle(s *puzzle.Set) puzzle.Puzzle { return s.Next() }

func (r *Runner) begin(pick func(*puzzle.Set) puzzle.Puzzle) error {
	var (
		board *rules.Board
		pb    *resolve.Playback
		cur   *puzzle.Puzzle
		err   error
	)
	if r.cfg.Puzzles != nil {
		p := pick(r.cfg.Puzzles)
		board, pb, err = puzzle.Begin(p)
		if err != nil {
			return fmt.Errorf("begin puzzle %s: %w", p.ID, err)
		}
		cur = &p
	} else {
		board, err = rules.FromFEN(r.cfg.StartFEN)
		if err != nil {
			return fmt.Errorf("begin game: %w", err)
		}
	}

	r.mu.Lock()
	r.cancelLocked()
	r.board, r.current = board, cur
	r.id = uuid.NewString()
	r.started = r.clock.Now()
	r.halted = false
	id := r.id
	r.mu.Unlock()

	fields := []zap.Field{zap.String("episode", id), zap.String("fen", board.FEN())}
	if cur != nil {
		fields = append(fields, zap.String("puzzle", cur.ID))
	}
	r.logger.Info("episode_begin", fields...)
	return r.ctl.StartEpisode(board, pb)
}

func (r *Runner) handle(ev round.Event) {
	switch ev.Kind {
	case round.EventEpisodeEnded:
		r.ended(ev)
	case round.EventFault:
		r.mu.Lock()
		r.cancelLocked()
		r.halted = true
		r.mu.Unlock()
		r.logger.Error("episode_halted", zap.Error(ev.Err))
	}
}

func (r *Runner) ended(ev round.Event) {
	r.mu.Lock()
	if r.board == nil {
		r.mu.Unlock()
		return
	}
	rec := domain.EpisodeRecord{
		ID:        r.id,
		Channel:   r.cfg.Channel,
		Mode:      r.cfg.Mode,
		Puzzle:    r.current != nil,
		StartFEN:  r.board.InitialFEN(),
		Outcome:   ev.Outcome,
		MovesUCI:  r.board.MovesUCI(),
		MovesSAN:  r.board.MovesSAN(),
		Rounds:    ev.Round,
		StartedAt: r.started,
		EndedAt:   r.clock.Now(),
	}
	if r.current != nil {
		rec.PuzzleID = r.current.ID
	}
	if ev.Outcome == domain.OutcomeCheckmate {
		rec.Winner = ev.Turn.Other().String()
	}
	r.cancelLocked()
	gen := r.gen
	wait := r.cfg.PauseAfterEnd
	r.pending = r.clock.AfterFunc(wait, func() { r.next(gen) })
	puzzleMode := r.current != nil
	r.mu.Unlock()

	r.logger.Info("episode_recorded",
		zap.String("episode", rec.ID),
		zap.String("outcome", string(rec.Outcome)),
		zap.Int("rounds", rec.Rounds),
		zap.Duration("next_in", wait),
	)
	if r.onNext != nil {
		r.onNext(puzzleMode, wait)
	}
	r.save(rec)
}

func (r *Runner) save(rec domain.EpisodeRecord) {
	if r.store == nil {
		return
	}
	r.saves.Add(1)
	go func() {
		defer r.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := r.store.SaveEpisode(ctx, rec); err != nil {
			r.logger.Warn("episode_save_failed", zap.String("episode", rec.ID), zap.Error(err))
		}
	}()
}

func (r *Runner) next(gen uint64) {
	r.mu.Lock()
	stale := gen != r.gen || r.halted
	if !stale {
		r.pending = nil
	}
	r.mu.Unlock()
	if stale {
		return
	}
	if err := r.begin(r.nextPuzzle); err != nil {
		r.logger.Error("episode_next_failed", zap.Error(err))
	}
}

func (r *Runner) cancelLocked() {
	r.gen++
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}
