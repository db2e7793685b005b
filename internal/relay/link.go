package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/round"
	"github.com/park285/Cheese-ChessVote/internal/tally"
	"go.uber.org/zap"
)

// Controller is the part of round.Controller a link drives.
type Controller interface {
	OnEvent(cb round.EventCallback) int
	RemoveEventCallback(id int)
	ApplyRemoteMove(move string) error
}

// Link binds a local controller to a session bus. It publishes the local side's
// tallies and chosen moves and feeds the partner's moves into the controller.
type Link struct {
	ctl    Controller
	bus    *Bus
	team   domain.Team
	logger *zap.Logger

	out    chan Envelope
	sub    *Subscription
	cbID   int
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	partnerVotes []tally.Entry
	partnerTotal int
	partnerRound int
	pending      []string
	onPartner    func(Envelope)
}

type LinkOption func(*Link)

func WithLinkLogger(l *zap.Logger) LinkOption { return func(k *Link) { k.logger = l } }

// WithPartnerHook is called for every envelope the partner sends.
func WithPartnerHook(fn func(Envelope)) LinkOption { return func(k *Link) { k.onPartner = fn } }

func NewLink(ctl Controller, bus *Bus, team domain.Team, opts ...LinkOption) *Link {
	l := &Link{ctl: ctl, bus: bus, team: team, logger: zap.NewNop(), out: make(chan Envelope, 128)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start subscribes and begins relaying. It returns after the subscription is live.
func (l *Link) Start(ctx context.Context) error {
	sub, err := l.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	l.sub = sub
	l.cancel = cancel
	l.cbID = l.ctl.OnEvent(l.onEvent)

	l.wg.Add(2)
	go l.sendLoop(ctx)
	go l.recvLoop(ctx)
	return nil
}

func (l *Link) Close() {
	if l.cancel == nil {
		return
	}
	l.ctl.RemoveEventCallback(l.cbID)
	l.cancel()
	_ = l.sub.Close()
	l.wg.Wait()
}

// PartnerVotes is the partner's latest published tally.
func (l *Link) PartnerVotes() (roundNo int, votes []tally.Entry, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.partnerRound, append([]tally.Entry(nil), l.partnerVotes...), l.partnerTotal
}

func (l *Link) onEvent(ev round.Event) {
	switch ev.Kind {
	case round.EventTallyChanged:
		if ev.Turn == l.team {
			l.enqueue(Envelope{Type: TypeVotes, From: l.team, Round: ev.Round, Votes: ev.Snapshot, Total: ev.Total})
		}
	case round.EventMoveApplied:
		if ev.Source == round.SourceVote {
			l.enqueue(Envelope{Type: TypeMove, From: l.team, Round: ev.Round, Move: ev.Move.UCI, SAN: ev.Move.SAN})
		}
	case round.EventRoundOpened:
		if ev.Mirror {
			l.drainPending()
		}
	}
}

func (l *Link) enqueue(env Envelope) {
	select {
	case l.out <- env:
	default:
		l.logger.Warn("relay_outbox_full", zap.String("type", string(env.Type)))
	}
}

func (l *Link) sendLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-l.out:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if err := l.bus.Publish(pctx, env); err != nil {
				l.logger.Warn("relay_publish_error", zap.String("type", string(env.Type)), zap.Error(err))
			}
			cancel()
		}
	}
}

func (l *Link) recvLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-l.sub.C:
			if !ok {
				return
			}
			if env.From == l.team {
				continue
			}
			l.handle(env)
		}
	}
}

func (l *Link) handle(env Envelope) {
	switch env.Type {
	case TypeVotes:
		l.mu.Lock()
		l.partnerRound = env.Round
		l.partnerVotes = env.Votes
		l.partnerTotal = env.Total
		l.mu.Unlock()
	case TypeMove:
		l.applyRemote(env.Move)
	}
	if l.onPartner != nil {
		l.onPartner(env)
	}
}

// applyRemote queues moves that arrive before the controller reached its mirror turn.
func (l *Link) applyRemote(move string) {
	err := l.ctl.ApplyRemoteMove(move)
	switch {
	case err == nil:
		l.logger.Info("relay_remote_move", zap.String("move", move))
	case errors.Is(err, round.ErrNotMirroring):
		l.mu.Lock()
		l.pending = append(l.pending, move)
		l.mu.Unlock()
		l.logger.Debug("relay_remote_move_queued", zap.String("move", move))
	default:
		l.logger.Warn("relay_remote_move_rejected", zap.String("move", move), zap.Error(err))
	}
}

func (l *Link) drainPending() {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return
	}
	move := l.pending[0]
	l.pending = l.pending[1:]
	l.mu.Unlock()
	l.applyRemote(move)
}
