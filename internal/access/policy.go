// Package access decides whether a chat voter may vote in the current round.
package access

import (
	"fmt"
	"strings"

	"github.com/park285/Cheese-ChessVote/internal/domain"
)

// Reason explains a denial. It is meant for logs, not for chat.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonWrongTeam      Reason = "wrong_team"
	ReasonNotParticipant Reason = "not_participant"
	ReasonUnknownChannel Reason = "unknown_channel"
	ReasonNotFollower    Reason = "not_follower"
	ReasonNotSubscriber  Reason = "not_subscriber"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny(" + string(d.Reason) + ")"
}

// RoundContext is the round state the policy reads.
type RoundContext struct {
	TurnOwner domain.Team
}

// Config is the participant and gate setup for one episode.
type Config struct {
	Mode            domain.GameMode
	SoloPlayer      string
	SoloTeam        domain.Team
	PlayerWhite     string
	PlayerBlack     string
	ChannelWhite    string
	ChannelBlack    string
	FollowersOnly   bool
	SubscribersOnly bool
}

// ConfigError reports a setup that must not start an episode.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s: %s", e.Field, e.Reason) }

// teamResolver maps a voter to a team. ok=false denies with reason.
type teamResolver interface {
	team(v domain.Voter, source string) (domain.Team, Reason, bool)
}

var resolvers = map[domain.GameMode]func(Config) (teamResolver, error){
	domain.ModeNormal:           func(Config) (teamResolver, error) { return nil, nil },
	domain.ModeSoloVsChat:       newSolo,
	domain.ModeOneVsOne:         newOneVsOne,
	domain.ModeViewersVsViewers: func(Config) (teamResolver, error) { return parity{}, nil },
	domain.ModeChatVsChat:       newChannels,
}

// Policy is immutable once built.
type Policy struct {
	cfg   Config
	teams teamResolver
}

// New builds the policy for cfg.Mode. Two-party modes without their participants
// return a *ConfigError.
func New(cfg Config) (*Policy, error) {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeNormal
	}
	build, ok := resolvers[cfg.Mode]
	if !ok {
		return nil, &ConfigError{Field: "GAME_MODE", Reason: "unknown mode " + string(cfg.Mode)}
	}
	teams, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return &Policy{cfg: cfg, teams: teams}, nil
}

func (p *Policy) Mode() domain.GameMode { return p.cfg.Mode }

// CanVote runs turn ownership, then the follow gate, then the subscriber gate.
func (p *Policy) CanVote(v domain.Voter, source string, rc RoundContext) Decision {
	if p.teams != nil {
		team, reason, ok := p.teams.team(v, source)
		if !ok {
			return deny(reason)
		}
		if team != rc.TurnOwner {
			return deny(ReasonWrongTeam)
		}
	}
	owner := IsChannelOwner(v, source)
	r := v.Roles
	if p.cfg.FollowersOnly && !owner && !(r.IsFollower || r.IsSubscriber || r.IsVIP || r.IsModerator || r.IsBroadcaster) {
		return deny(ReasonNotFollower)
	}
	if p.cfg.SubscribersOnly && !owner && !(r.IsSubscriber || r.IsVIP || r.IsModerator || r.IsBroadcaster) {
		return deny(ReasonNotSubscriber)
	}
	return allow()
}

// TeamOf reports the team a voter plays for, if the mode assigns one.
func (p *Policy) TeamOf(v domain.Voter, source string) (domain.Team, bool) {
	if p.teams == nil {
		return domain.TeamWhite, false
	}
	t, _, ok := p.teams.team(v, source)
	return t, ok
}

// IsChannelOwner is true for the flagged owner or the user named like the channel.
func IsChannelOwner(v domain.Voter, source string) bool {
	if v.Roles.IsChannelOwner {
		return true
	}
	ch := domain.ChannelName(source)
	return ch != "" && domain.SameUser(v.ID, ch)
}

// solo: the named player owns one team, everyone else the other.
type solo struct {
	player string
	side   domain.Team
}

func newSolo(cfg Config) (teamResolver, error) {
	if strings.TrimSpace(cfg.SoloPlayer) == "" {
		return nil, &ConfigError{Field: "SOLO_PLAYER", Reason: "required for soloVsChat"}
	}
	return solo{player: cfg.SoloPlayer, side: cfg.SoloTeam}, nil
}

func (s solo) team(v domain.Voter, _ string) (domain.Team, Reason, bool) {
	if domain.SameUser(v.ID, s.player) {
		return s.side, ReasonNone, true
	}
	return s.side.Other(), ReasonNone, true
}

// oneVsOne: only the two named players vote.
type oneVsOne struct{ white, black string }

func newOneVsOne(cfg Config) (teamResolver, error) {
	if strings.TrimSpace(cfg.PlayerWhite) == "" {
		return nil, &ConfigError{Field: "PLAYER_WHITE", Reason: "required for oneVsOne"}
	}
	if strings.TrimSpace(cfg.PlayerBlack) == "" {
		return nil, &ConfigError{Field: "PLAYER_BLACK", Reason: "required for oneVsOne"}
	}
	if domain.SameUser(cfg.PlayerWhite, cfg.PlayerBlack) {
		return nil, &ConfigError{Field: "PLAYER_BLACK", Reason: "must differ from PLAYER_WHITE"}
	}
	return oneVsOne{white: cfg.PlayerWhite, black: cfg.PlayerBlack}, nil
}

func (o oneVsOne) team(v domain.Voter, _ string) (domain.Team, Reason, bool) {
	switch {
	case domain.SameUser(v.ID, o.white):
		return domain.TeamWhite, ReasonNone, true
	case domain.SameUser(v.ID, o.black):
		return domain.TeamBlack, ReasonNone, true
	default:
		return domain.TeamWhite, ReasonNotParticipant, false
	}
}

// channels: the team is the channel the vote arrived from.
type channels struct{ white, black string }

func newChannels(cfg Config) (teamResolver, error) {
	if domain.ChannelName(cfg.ChannelWhite) == "" {
		return nil, &ConfigError{Field: "CHANNEL_WHITE", Reason: "required for chatVsChat"}
	}
	if domain.ChannelName(cfg.ChannelBlack) == "" {
		return nil, &ConfigError{Field: "CHANNEL_BLACK", Reason: "required for chatVsChat"}
	}
	return channels{white: domain.ChannelName(cfg.ChannelWhite), black: domain.ChannelName(cfg.ChannelBlack)}, nil
}

func (c channels) team(_ domain.Voter, source string) (domain.Team, Reason, bool) {
	ch := domain.ChannelName(source)
	switch {
	case strings.EqualFold(ch, c.white):
		return domain.TeamWhite, ReasonNone, true
	case strings.EqualFold(ch, c.black):
		return domain.TeamBlack, ReasonNone, true
	default:
		return domain.TeamWhite, ReasonUnknownChannel, false
	}
}

// parity: numeric id mod 2, missing id plays white.
type parity struct{}

func (parity) team(v domain.Voter, _ string) (domain.Team, Reason, bool) {
	if v.Roles.NumericID == nil {
		return domain.TeamWhite, ReasonNone, true
	}
	n := *v.Roles.NumericID % 2
	if n < 0 {
		n = -n
	}
	return domain.Team(n), ReasonNone, true
}
