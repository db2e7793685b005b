package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-ChessVote/internal/adapter/announcer"
	"github.com/park285/Cheese-ChessVote/internal/chatfeed"
	"github.com/park285/Cheese-ChessVote/internal/command"
	appcfg "github.com/park285/Cheese-ChessVote/internal/config"
	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/episode"
	"github.com/park285/Cheese-ChessVote/internal/history"
	"github.com/park285/Cheese-ChessVote/internal/msgcat"
	"github.com/park285/Cheese-ChessVote/internal/obslog"
	"github.com/park285/Cheese-ChessVote/internal/overlay"
	"github.com/park285/Cheese-ChessVote/internal/puzzle"
	"github.com/park285/Cheese-ChessVote/internal/relay"
	"github.com/park285/Cheese-ChessVote/internal/round"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("msgcat_init_failed", zap.Error(err))
	}
	client := chatfeed.NewClient(cfg.ChatAPIURL, chatfeed.WithTimeout(8*time.Second))
	ws := chatfeed.NewWebSocket(cfg.ChatWSURL, 5)
	ws.OnStateChange(func(state chatfeed.WebSocketState) {
		logger.Info("chat_ws_state", zap.String("state", state.String()))
	})
	egress := chatfeed.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger.Named("egress"))
	ann := announcer.New(egress, announcer.NewFormatter(cat, cfg.BotPrefix), cfg.ChatChannel,
		announcer.WithLogger(logger.Named("announcer")),
		announcer.WithRejectionReplies(cfg.ReplyRejections),
	)
	go ann.Run(ctx)

	localTeam := domain.TeamWhite
	var bus *relay.Bus
	var relayMgr *relay.Manager
	var relayCode string
	if cfg.RelayEnabled {
		// the chat socket carries the relay announcements, so connect it first
		if err := ws.Connect(ctx); err != nil {
			logger.Warn("chat_ws_connect_failed", zap.Error(err))
		}
		rdb, err := relay.Dial(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("relay_redis_failed", zap.Error(err))
		}
		defer rdb.Close()
		relayMgr = relay.NewManager(rdb, relay.WithLogger(logger.Named("relay")))
		meta, team, err := openRelay(ctx, relayMgr, cfg, ann)
		if err != nil {
			logger.Fatal("relay_session_failed", zap.Error(err))
		}
		localTeam, relayCode = team, meta.Code
		if text, err := ann.Formatter().RelayReady(meta.Host, meta.Guest); err == nil {
			ann.Say(text)
		}
		bus = relay.NewBus(rdb, meta.Code)
	}

	ctl, err := round.New(cfg.Round(localTeam), round.WithLogger(logger.Named("round")))
	if err != nil {
		logger.Fatal("round_init_failed", zap.Error(err))
	}
	ann.Attach(ctl)
	if bus != nil {
		link := relay.NewLink(ctl, bus, localTeam,
			relay.WithLinkLogger(logger.Named("relay")),
			relay.WithPartnerHook(func(env relay.Envelope) {
				logger.Debug("relay_partner", zap.String("type", string(env.Type)), zap.Int("round", env.Round))
			}),
		)
		if err := link.Start(ctx); err != nil {
			logger.Fatal("relay_link_failed", zap.Error(err))
		}
		defer link.Close()
	}

	var repo *history.Repository
	if cfg.DatabaseURL != "" {
		repo, err = history.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("history_open_failed", zap.Error(err))
		}
		defer repo.Close()
		if err := repo.CreateSchema(ctx); err != nil {
			logger.Fatal("history_schema_failed", zap.Error(err))
		}
	}

	epCfg := episode.Config{
		Channel:       cfg.ChatChannel,
		Mode:          cfg.GameMode,
		StartFEN:      cfg.StartFEN,
		PauseAfterEnd: cfg.PauseAfterEnd(),
	}
	if cfg.PuzzleMode {
		ps, err := puzzle.Load(cfg.PuzzleFile)
		if err != nil {
			logger.Fatal("puzzle_load_failed", zap.Error(err))
		}
		set, err := puzzle.NewSet(ps, cfg.PuzzleShuffle, time.Now().UnixNano())
		if err != nil {
			logger.Fatal("puzzle_set_failed", zap.Error(err))
		}
		epCfg.Puzzles = set
	}
	runOpts := []episode.Option{
		episode.WithLogger(logger.Named("episode")),
		episode.WithNextHook(func(isPuzzle bool, wait time.Duration) {
			if text, err := ann.Formatter().NextEpisode(isPuzzle, wait); err == nil {
				ann.Say(text)
			}
		}),
	}
	if repo != nil {
		runOpts = append(runOpts, episode.WithStore(repo))
	}
	runner := episode.New(ctl, epCfg, runOpts...)

	dispatcher := command.New(ctl, runner, ann, cfg.BotPrefix,
		command.WithRooms(cfg.ChatChannel, cfg.ChannelWhite, cfg.ChannelBlack),
		command.WithLogger(logger.Named("command")),
	)
	ws.OnMessage(dispatcher.Handle)

	if cfg.OverlayAddr != "" {
		opts := []overlay.Option{
			overlay.WithLogger(logger.Named("overlay")),
			overlay.WithEpisodeInfo(runner),
			overlay.WithControlToken(cfg.OverlayToken),
		}
		if repo != nil {
			opts = append(opts, overlay.WithHistory(repo, cfg.ChatChannel))
		}
		srv := overlay.NewServer(ctx, ctl, opts...)
		ctl.OnEvent(srv.Handle)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.OverlayAddr); err != nil {
				logger.Error("overlay_server_failed", zap.Error(err))
			}
		}()
	}

	if err := runner.Start(); err != nil {
		logger.Fatal("episode_start_failed", zap.Error(err))
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		// Connect keeps retrying in the background
		logger.Warn("chat_ws_connect_failed", zap.Error(err))
	}
	cancel()

	logger.Info("chess_voter_ready",
		zap.String("channel", cfg.ChatChannel),
		zap.String("mode", string(cfg.GameMode)),
		zap.Bool("puzzle", cfg.PuzzleMode),
		zap.String("relay_code", relayCode),
	)
	<-ctx.Done()

	runner.Stop()
	if relayMgr != nil && relayCode != "" {
		fctx, fcancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = relayMgr.Finish(fctx, relayCode)
		fcancel()
	}
	_ = ws.Close(context.Background())
}

// openRelay hosts a new session when RELAY_CODE is empty, otherwise rejoins or joins it.
func openRelay(ctx context.Context, mgr *relay.Manager, cfg *appcfg.AppConfig, ann *announcer.Announcer) (*relay.Meta, domain.Team, error) {
	if cfg.RelayCode == "" {
		meta, err := mgr.Create(ctx, cfg.ChatChannel, cfg.ChatChannel)
		if err != nil {
			return nil, domain.TeamWhite, err
		}
		if text, err := ann.Formatter().RelayCreated(meta.Code); err == nil {
			ann.Say(text)
		}
		obslog.L().Info("relay_waiting", zap.String("code", meta.Code))
		meta, err = mgr.WaitReady(ctx, meta.Code)
		return meta, domain.TeamWhite, err
	}
	meta, team, err := mgr.Reconnect(ctx, cfg.RelayCode, cfg.ChatChannel)
	if errors.Is(err, relay.ErrNotParticipant) {
		meta, err = mgr.Join(ctx, cfg.RelayCode, cfg.ChatChannel, cfg.ChatChannel)
		team = domain.TeamBlack
	}
	if err != nil {
		return nil, domain.TeamWhite, err
	}
	if meta.State == relay.StateWaiting {
		// rejoining host whose guest has not arrived yet
		meta, err = mgr.WaitReady(ctx, meta.Code)
	}
	return meta, team, err
}
