// Package announcer turns round controller events into chat lines.
package announcer

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-ChessVote/internal/round"
)

const (
	defaultQueueSize = 64
	defaultWarnAt    = 10 * time.Second
	sendTimeout      = 5 * time.Second
)

// Sender delivers one chat line to a room.
type Sender interface {
	SendText(ctx context.Context, room, message string) error
}

// Announcer queues rendered lines and sends them from its own goroutine, so event
// callbacks never block the controller on the network.
type Announcer struct {
	f       *Formatter
	send    Sender
	room    string
	logger  *zap.Logger
	warnAt  time.Duration
	replies bool

	out chan string

	mu         sync.Mutex
	warned     int
	lastTally  round.Event
	tallyRound int
}

type Option func(*Announcer)

func WithLogger(l *zap.Logger) Option { return func(a *Announcer) { a.logger = l } }

// WithWarnAt sets the remaining time that triggers the "seconds left" line. Zero disables it.
func WithWarnAt(d time.Duration) Option { return func(a *Announcer) { a.warnAt = d } }

// WithRejectionReplies makes Reject answer voters whose vote was dropped.
func WithRejectionReplies(on bool) Option { return func(a *Announcer) { a.replies = on } }

func New(send Sender, f *Formatter, room string, opts ...Option) *Announcer {
	a := &Announcer{
		f:      f,
		send:   send,
		room:   room,
		logger: zap.NewNop(),
		warnAt: defaultWarnAt,
		out:    make(chan string, defaultQueueSize),
		warned: -1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Announcer) Formatter() *Formatter { return a.f }

// Attach subscribes to ctl and returns the callback id.
func (a *Announcer) Attach(ctl *round.Controller) int {
	return ctl.OnEvent(a.Handle)
}

// Handle is the controller callback.
func (a *Announcer) Handle(ev round.Event) {
	switch ev.Kind {
	case round.EventTallyChanged:
		a.mu.Lock()
		a.lastTally, a.tallyRound = ev, ev.Round
		a.mu.Unlock()
		return
	case round.EventTimerTick:
		a.maybeWarn(ev)
		return
	}
	text, err := a.f.Event(ev)
	if err != nil {
		a.logger.Warn("announce_render_failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}
	a.Say(text)
}

func (a *Announcer) maybeWarn(ev round.Event) {
	if a.warnAt <= 0 || ev.Remaining > a.warnAt || ev.Remaining <= 0 {
		return
	}
	a.mu.Lock()
	if a.warned == ev.Round || a.tallyRound != ev.Round || a.lastTally.Total == 0 {
		a.mu.Unlock()
		return
	}
	a.warned = ev.Round
	tally := a.lastTally
	a.mu.Unlock()

	text, err := a.f.Warning(ev.Remaining, tally)
	if err != nil {
		a.logger.Warn("announce_render_failed", zap.String("kind", "warning"), zap.Error(err))
		return
	}
	a.Say(text)
}

// Reject answers a dropped vote when rejection replies are on.
func (a *Announcer) Reject(voter string, res round.SubmitResult) {
	if !a.replies || res.Accepted {
		return
	}
	text, err := a.f.Rejection(voter, res)
	if err != nil {
		a.logger.Warn("announce_render_failed", zap.String("kind", "rejection"), zap.Error(err))
		return
	}
	a.Say(text)
}

// Say queues a line. A full queue drops the line rather than blocking the caller.
func (a *Announcer) Say(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	select {
	case a.out <- text:
	default:
		a.logger.Warn("announce_dropped", zap.String("room", a.room), zap.String("text", text))
	}
}

// Run sends queued lines until ctx ends.
func (a *Announcer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-a.out:
			sctx, cancel := context.WithTimeout(ctx, sendTimeout)
			err := a.send.SendText(sctx, a.room, text)
			cancel()
			if err != nil {
				a.logger.Warn("announce_send_failed", zap.String("room", a.room), zap.Error(err))
			}
		}
	}
}
