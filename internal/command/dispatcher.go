// Package command routes chat lines to votes and moderator commands.
package command

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-ChessVote/internal/access"
	"github.com/park285/Cheese-ChessVote/internal/adapter/announcer"
	"github.com/park285/Cheese-ChessVote/internal/chatfeed"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/round"
)

// Controller is the part of round.Controller chat can reach.
type Controller interface {
	Submit(ev domain.VoteEvent) round.SubmitResult
	State() round.State
	Pause() error
	Resume() error
	ForceResolve() error
	Extend(d time.Duration) error
}

// Episodes restarts or advances the episode sequence.
type Episodes interface {
	NewEpisode() error
	Reload() error
}

// Output is where replies go.
type Output interface {
	Say(text string)
	Reject(voter string, res round.SubmitResult)
	Formatter() *announcer.Formatter
}

type Dispatcher struct {
	ctl      Controller
	episodes Episodes
	out      Output
	prefix   string
	rooms    map[string]bool
	logger   *zap.Logger
}

type Option func(*Dispatcher)

func WithLogger(l *zap.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithRooms limits handling to the given channels. Empty names are skipped.
func WithRooms(rooms ...string) Option {
	return func(d *Dispatcher) {
		for _, r := range rooms {
			if n := domain.ChannelName(r); n != "" {
				d.rooms[n] = true
			}
		}
	}
}

func New(ctl Controller, episodes Episodes, out Output, prefix string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ctl:      ctl,
		episodes: episodes,
		out:      out,
		prefix:   strings.TrimSpace(prefix),
		rooms:    make(map[string]bool),
		logger:   zap.NewNop(),
	}
	if d.prefix == "" {
		d.prefix = "!"
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle is the chat feed callback.
func (d *Dispatcher) Handle(msg *chatfeed.Message) {
	ev, ok := chatfeed.ToVoteEvent(msg)
	if !ok {
		return
	}
	if len(d.rooms) > 0 && !d.rooms[ev.SourceChannel] {
		return
	}
	text := strings.TrimSpace(ev.RawText)
	if !strings.HasPrefix(text, d.prefix) {
		// bare chat lines are vote candidates but never answered
		d.ctl.Submit(ev)
		return
	}
	parts := strings.Fields(strings.TrimPrefix(text, d.prefix))
	if len(parts) == 0 {
		return
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]
	switch cmd {
	case "vote", "v":
		if len(args) == 0 {
			return
		}
		ev.RawText = strings.Join(args, " ")
		res := d.ctl.Submit(ev)
		if !res.Accepted {
			d.out.Reject(ev.Voter.ID, res)
		}
	case "help":
		d.reply(d.out.Formatter().Help())
	case "moves":
		d.reply(d.out.Formatter().Moves(d.ctl.State().Legal))
	case "pause", "resume", "force", "extend", "new", "reload":
		if !canModerate(ev.Voter, ev.SourceChannel) {
			d.reply(d.out.Formatter().Denied(ev.Voter.ID))
			return
		}
		d.moderate(ev.Voter.ID, cmd, args)
	}
}

func (d *Dispatcher) moderate(voter, cmd string, args []string) {
	var err error
	switch cmd {
	case "pause":
		err = d.ctl.Pause()
	case "resume":
		err = d.ctl.Resume()
	case "force":
		err = d.ctl.ForceResolve()
	case "extend":
		sec := 0
		if len(args) > 0 {
			sec, _ = strconv.Atoi(args[0])
		}
		if sec <= 0 {
			d.reply(d.out.Formatter().Usage(voter, "extend <seconds>"))
			return
		}
		if err = d.ctl.Extend(time.Duration(sec) * time.Second); err == nil {
			d.reply(d.out.Formatter().Extended(d.ctl.State().Remaining))
		}
	case "new":
		err = d.episodes.NewEpisode()
	case "reload":
		err = d.episodes.Reload()
	}
	switch {
	case err == nil:
		d.logger.Info("chat_command", zap.String("voter", voter), zap.String("cmd", cmd))
	case errors.Is(err, round.ErrRoundNotOpen), errors.Is(err, round.ErrTimerDisabled):
		d.reply(d.out.Formatter().NoRound())
	default:
		d.logger.Warn("chat_command_failed", zap.String("voter", voter), zap.String("cmd", cmd), zap.Error(err))
	}
}

func (d *Dispatcher) reply(text string, err error) {
	if err != nil {
		d.logger.Warn("reply_render_failed", zap.Error(err))
		return
	}
	d.out.Say(text)
}

func canModerate(v domain.Voter, source string) bool {
	return access.IsChannelOwner(v, source) || v.Roles.IsBroadcaster || v.Roles.IsModerator
}
