package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/round"
)

// Error reports a missing or malformed setting. The process must not start with it.
type Error struct {
	Var    string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("config %s: %s", e.Var, e.Reason) }

type AppConfig struct {
	ChatWSURL    string
	ChatAPIURL   string
	ChatChannel  string
	EgressMode   string
	EgressDryRun bool

	BotPrefix   string
	MessagesDir string

	TimerEnabled       bool
	VoteDurationSec    int
	OneVotePerVoter    bool
	MajorityMode       bool
	WheelAnimationSec  int
	PuzzleReplyDelayMS int
	PauseAfterEndSec   int
	ReplyRejections    bool

	FollowersOnly   bool
	SubscribersOnly bool

	GameMode     domain.GameMode
	SoloPlayer   string
	SoloTeam     domain.Team
	PlayerWhite  string
	PlayerBlack  string
	ChannelWhite string
	ChannelBlack string

	PuzzleMode    bool
	PuzzleFile    string
	PuzzleShuffle bool
	StartFEN      string

	RedisURL     string
	RelayEnabled bool
	RelayCode    string

	DatabaseURL    string
	DatabaseDriver string

	OverlayAddr  string
	OverlayToken string
}

// Load reads the environment, after an optional .env in the working directory.
func Load() (*AppConfig, error) {
	// a missing .env is normal in containers
	_ = godotenv.Load()

	cfg := &AppConfig{
		EgressMode:         "http",
		BotPrefix:          "!",
		TimerEnabled:       true,
		VoteDurationSec:    25,
		MajorityMode:       true,
		WheelAnimationSec:  5,
		PuzzleReplyDelayMS: 2000,
		PauseAfterEndSec:   15,
		GameMode:           domain.ModeNormal,
		SoloTeam:           domain.TeamWhite,
		DatabaseDriver:     "postgres",
	}
	var errs []error
	r := reader{errs: &errs}

	cfg.ChatWSURL = r.str("CHAT_WS_URL")
	cfg.ChatAPIURL = r.str("CHAT_API_URL")
	cfg.ChatChannel = domain.ChannelName(r.str("CHAT_CHANNEL"))
	if v := r.str("EGRESS_MODE"); v != "" {
		cfg.EgressMode = strings.ToLower(v)
	}
	r.boolean("EGRESS_DRYRUN", &cfg.EgressDryRun)
	if v := r.str("BOT_PREFIX"); v != "" {
		cfg.BotPrefix = v
	}
	cfg.MessagesDir = r.str("MESSAGES_DIR")

	r.boolean("VOTE_TIMER_ENABLED", &cfg.TimerEnabled)
	r.integer("VOTE_DURATION_SEC", &cfg.VoteDurationSec)
	r.boolean("VOTE_ONE_PER_VOTER", &cfg.OneVotePerVoter)
	r.boolean("VOTE_MAJORITY", &cfg.MajorityMode)
	r.integer("WHEEL_ANIMATION_SEC", &cfg.WheelAnimationSec)
	r.integer("PUZZLE_REPLY_DELAY_MS", &cfg.PuzzleReplyDelayMS)
	r.integer("PAUSE_AFTER_END_SEC", &cfg.PauseAfterEndSec)
	r.boolean("VOTE_REPLY_REJECTIONS", &cfg.ReplyRejections)
	r.boolean("FOLLOWERS_ONLY", &cfg.FollowersOnly)
	r.boolean("SUBSCRIBERS_ONLY", &cfg.SubscribersOnly)

	if v := r.str("GAME_MODE"); v != "" {
		m, ok := domain.ParseGameMode(v)
		if !ok {
			errs = append(errs, &Error{Var: "GAME_MODE", Reason: fmt.Sprintf("unknown mode %q", v)})
		}
		cfg.GameMode = m
	}
	cfg.SoloPlayer = r.str("SOLO_PLAYER")
	if v := r.str("SOLO_TEAM"); v != "" {
		t, ok := domain.ParseTeam(v)
		if !ok {
			errs = append(errs, &Error{Var: "SOLO_TEAM", Reason: fmt.Sprintf("expected white or black, got %q", v)})
		}
		cfg.SoloTeam = t
	}
	cfg.PlayerWhite = r.str("PLAYER_WHITE")
	cfg.PlayerBlack = r.str("PLAYER_BLACK")
	cfg.ChannelWhite = r.str("CHANNEL_WHITE")
	cfg.ChannelBlack = r.str("CHANNEL_BLACK")

	r.boolean("PUZZLE_MODE", &cfg.PuzzleMode)
	cfg.PuzzleFile = r.str("PUZZLE_FILE")
	r.boolean("PUZZLE_SHUFFLE", &cfg.PuzzleShuffle)
	cfg.StartFEN = r.str("START_FEN")

	cfg.RedisURL = r.str("REDIS_URL")
	r.boolean("RELAY_ENABLED", &cfg.RelayEnabled)
	cfg.RelayCode = strings.ToUpper(r.str("RELAY_CODE"))

	cfg.DatabaseURL = r.str("DATABASE_URL")
	if v := r.str("DATABASE_DRIVER"); v != "" {
		cfg.DatabaseDriver = strings.ToLower(v)
	}
	cfg.OverlayAddr = r.str("OVERLAY_ADDR")
	cfg.OverlayToken = r.str("OVERLAY_TOKEN")

	if len(errs) > 0 {
		return nil, errs[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *AppConfig) Validate() error {
	switch {
	case c.ChatWSURL == "":
		return &Error{Var: "CHAT_WS_URL", Reason: "required"}
	case c.ChatChannel == "":
		return &Error{Var: "CHAT_CHANNEL", Reason: "required"}
	case c.EgressMode != "http" && c.EgressMode != "ws" && c.EgressMode != "auto":
		return &Error{Var: "EGRESS_MODE", Reason: "expected http, ws or auto"}
	case c.EgressMode == "http" && c.ChatAPIURL == "" && !c.EgressDryRun:
		return &Error{Var: "CHAT_API_URL", Reason: "required for http egress"}
	case c.TimerEnabled && c.VoteDurationSec <= 0:
		return &Error{Var: "VOTE_DURATION_SEC", Reason: "must be positive"}
	case c.WheelAnimationSec < 0:
		return &Error{Var: "WHEEL_ANIMATION_SEC", Reason: "cannot be negative"}
	case c.PuzzleReplyDelayMS < 0:
		return &Error{Var: "PUZZLE_REPLY_DELAY_MS", Reason: "cannot be negative"}
	case c.PauseAfterEndSec < 0:
		return &Error{Var: "PAUSE_AFTER_END_SEC", Reason: "cannot be negative"}
	case c.PuzzleMode && c.PuzzleFile == "":
		return &Error{Var: "PUZZLE_FILE", Reason: "required when PUZZLE_MODE is on"}
	case c.RelayEnabled && c.RedisURL == "":
		return &Error{Var: "REDIS_URL", Reason: "required when RELAY_ENABLED is on"}
	case c.RelayEnabled && c.PuzzleMode:
		return &Error{Var: "RELAY_ENABLED", Reason: "relay sessions cannot run puzzles"}
	case c.DatabaseURL != "" && c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite":
		return &Error{Var: "DATABASE_DRIVER", Reason: "expected postgres or sqlite"}
	}
	switch c.GameMode {
	case domain.ModeSoloVsChat:
		if c.SoloPlayer == "" {
			return &Error{Var: "SOLO_PLAYER", Reason: "required for soloVsChat"}
		}
	case domain.ModeOneVsOne:
		if c.PlayerWhite == "" || c.PlayerBlack == "" {
			return &Error{Var: "PLAYER_WHITE", Reason: "PLAYER_WHITE and PLAYER_BLACK are required for oneVsOne"}
		}
	case domain.ModeChatVsChat:
		if c.ChannelWhite == "" || c.ChannelBlack == "" {
			return &Error{Var: "CHANNEL_WHITE", Reason: "CHANNEL_WHITE and CHANNEL_BLACK are required for chatVsChat"}
		}
	}
	return nil
}

// Round builds the controller configuration. localTeam only matters for relay rooms.
func (c *AppConfig) Round(localTeam domain.Team) round.Config {
	return round.Config{
		TimerEnabled:     c.TimerEnabled,
		VoteDuration:     time.Duration(c.VoteDurationSec) * time.Second,
		OneVotePerVoter:  c.OneVotePerVoter,
		MajorityMode:     c.MajorityMode,
		WheelAnimation:   time.Duration(c.WheelAnimationSec) * time.Second,
		FollowersOnly:    c.FollowersOnly,
		SubscribersOnly:  c.SubscribersOnly,
		GameMode:         c.GameMode,
		PuzzleMode:       c.PuzzleMode,
		PuzzleReplyDelay: time.Duration(c.PuzzleReplyDelayMS) * time.Millisecond,
		SoloPlayer:       c.SoloPlayer,
		SoloTeam:         c.SoloTeam,
		PlayerWhite:      c.PlayerWhite,
		PlayerBlack:      c.PlayerBlack,
		ChannelWhite:     c.ChannelWhite,
		ChannelBlack:     c.ChannelBlack,
		Relay:            c.RelayEnabled,
		LocalTeam:        localTeam,
	}
}

func (c *AppConfig) PauseAfterEnd() time.Duration {
	return time.Duration(c.PauseAfterEndSec) * time.Second
}

// reader collects parse errors instead of silently keeping defaults.
type reader struct{ errs *[]error }

func (r reader) str(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func (r reader) boolean(key string, dst *bool) {
	v := r.str(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*r.errs = append(*r.errs, &Error{Var: key, Reason: fmt.Sprintf("not a boolean: %q", v)})
		return
	}
	*dst = b
}

func (r reader) integer(key string, dst *int) {
	v := r.str(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*r.errs = append(*r.errs, &Error{Var: key, Reason: fmt.Sprintf("not an integer: %q", v)})
		return
	}
	*dst = n
}
