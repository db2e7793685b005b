package round

import (
	"time"

	"github.com/park285/Cheese-ChessVote/internal/access"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/resolve"
)

// Config is fixed for the lifetime of a Controller.
type Config struct {
	TimerEnabled     bool
	VoteDuration     time.Duration
	OneVotePerVoter  bool
	MajorityMode     bool
	WheelAnimation   time.Duration
	FollowersOnly    bool
	SubscribersOnly  bool
	GameMode         domain.GameMode
	PuzzleMode       bool
	PuzzleReplyDelay time.Duration

	SoloPlayer   string
	SoloTeam     domain.Team
	PlayerWhite  string
	PlayerBlack  string
	ChannelWhite string
	ChannelBlack string

	// Relay marks a controller paired with a remote one. Only LocalTeam's turns are
	// voted here; the other side's moves arrive through ApplyRemoteMove.
	Relay     bool
	LocalTeam domain.Team
}

// DefaultConfig mirrors the stock streamer setup.
func DefaultConfig() Config {
	return Config{
		TimerEnabled:     true,
		VoteDuration:     25 * time.Second,
		MajorityMode:     true,
		WheelAnimation:   5 * time.Second,
		GameMode:         domain.ModeNormal,
		PuzzleReplyDelay: 2 * time.Second,
	}
}

// Strategy is the majority rule in puzzle mode whatever MajorityMode says.
func (c Config) Strategy() resolve.Strategy {
	if c.MajorityMode || c.PuzzleMode {
		return resolve.StrategyMajority
	}
	return resolve.StrategyWheel
}

func (c Config) accessConfig() access.Config {
	return access.Config{
		Mode:            c.GameMode,
		SoloPlayer:      c.SoloPlayer,
		SoloTeam:        c.SoloTeam,
		PlayerWhite:     c.PlayerWhite,
		PlayerBlack:     c.PlayerBlack,
		ChannelWhite:    c.ChannelWhite,
		ChannelBlack:    c.ChannelBlack,
		FollowersOnly:   c.FollowersOnly,
		SubscribersOnly: c.SubscribersOnly,
	}
}

func (c Config) validate() error {
	if c.TimerEnabled && c.VoteDuration <= 0 {
		return &access.ConfigError{Field: "VOTE_DURATION_SEC", Reason: "must be positive when the timer is enabled"}
	}
	if c.WheelAnimation < 0 || c.PuzzleReplyDelay < 0 {
		return &access.ConfigError{Field: "WHEEL_ANIMATION_SEC", Reason: "delays cannot be negative"}
	}
	if c.Relay && c.PuzzleMode {
		return &access.ConfigError{Field: "RELAY_ENABLED", Reason: "relay sessions cannot run puzzles"}
	}
	return nil
}

// immediate reports whether rounds for turn close on the first accepted vote.
func (c Config) immediate(turn domain.Team) bool {
	switch {
	case !c.TimerEnabled:
		return true
	case c.GameMode == domain.ModeOneVsOne:
		return true
	case c.GameMode == domain.ModeSoloVsChat && turn == c.SoloTeam:
		return true
	default:
		return false
	}
}
