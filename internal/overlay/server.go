// Package overlay serves round state and a live event stream to browser overlays, and
// accepts moderator controls over HTTP.
package overlay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/round"
	"github.com/park285/Cheese-ChessVote/pkg/votedto"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxExtendSec        = 600
	writeTimeout        = 3 * time.Second
)

// Controls is the part of the round controller the overlay drives.
type Controls interface {
	State() round.State
	Pause() error
	Resume() error
	ForceResolve() error
	Extend(d time.Duration) error
}

// EpisodeInfo reports the live board position and episode id.
type EpisodeInfo interface {
	FEN() string
	EpisodeID() string
}

type HistorySource interface {
	Recent(ctx context.Context, channel string, limit int) ([]domain.EpisodeRecord, error)
	PGNFor(ctx context.Context, id string) (string, error)
}

type Server struct {
	ctl     Controls
	hub     *Hub
	episode EpisodeInfo
	history HistorySource
	channel string
	token   string
	origins []string
	logger  *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

func WithEpisodeInfo(e EpisodeInfo) Option { return func(s *Server) { s.episode = e } }

// WithHistory enables /history for channel.
func WithHistory(h HistorySource, channel string) Option {
	return func(s *Server) { s.history, s.channel = h, channel }
}

// WithControlToken requires "Authorization: Bearer <token>" on control routes.
func WithControlToken(token string) Option { return func(s *Server) { s.token = token } }

// WithOriginPatterns allows cross-origin websocket clients (browser sources on another host).
func WithOriginPatterns(p ...string) Option { return func(s *Server) { s.origins = p } }

func NewServer(ctx context.Context, ctl Controls, opts ...Option) *Server {
	s := &Server{ctl: ctl, hub: NewHub(ctx), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// Handle is a round controller callback that pushes the event to every client.
func (s *Server) Handle(ev round.Event) {
	payload, err := json.Marshal(votedto.Frame{Type: "event", Event: ToDTOEvent(ev)})
	if err != nil {
		s.logger.Warn("overlay_encode_failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}
	if !s.hub.Broadcast(payload) {
		s.logger.Warn("overlay_broadcast_dropped", zap.String("kind", string(ev.Kind)))
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/state", s.state)
	r.Get("/events", s.events)
	r.Route("/control", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/extend", s.extend)
		r.Post("/{action}", s.control)
	})
	if s.history != nil {
		r.Get("/history", s.recent)
		r.Get("/history/{id}/pgn", s.pgn)
	}
	return r
}

// ListenAndServe blocks until ctx ends or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("overlay_listen", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.hub.Close()
		return nil
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) snapshot() *votedto.RoundState {
	fen, id := "", ""
	if s.episode != nil {
		fen, id = s.episode.FEN(), s.episode.EpisodeID()
	}
	return ToDTOState(s.ctl.State(), fen, id)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	id := uuid.NewString()
	out := s.hub.Join(id)
	defer s.hub.Leave(id)
	s.logger.Debug("overlay_client_join", zap.String("client", id))

	// overlays only listen; CloseRead handles pings and reports the disconnect
	ctx := conn.CloseRead(r.Context())

	first, err := json.Marshal(votedto.Frame{Type: "state", State: s.snapshot()})
	if err != nil || write(ctx, conn, first) != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-out:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutdown")
				return
			}
			if err := write(ctx, conn, p); err != nil {
				s.logger.Debug("overlay_client_gone", zap.String("client", id), zap.Error(err))
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, p []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, p)
}

func (s *Server) control(w http.ResponseWriter, r *http.Request) {
	var err error
	action := chi.URLParam(r, "action")
	switch action {
	case "pause":
		err = s.ctl.Pause()
	case "resume":
		err = s.ctl.Resume()
	case "force":
		err = s.ctl.ForceResolve()
	default:
		writeJSON(w, http.StatusNotFound, votedto.Error{Code: "unknown_action", Message: action})
		return
	}
	s.finishControl(w, action, err)
}

func (s *Server) extend(w http.ResponseWriter, r *http.Request) {
	sec, err := strconv.Atoi(r.URL.Query().Get("sec"))
	if err != nil || sec <= 0 || sec > maxExtendSec {
		writeJSON(w, http.StatusBadRequest, votedto.Error{Code: "bad_sec", Message: "sec must be 1.." + strconv.Itoa(maxExtendSec)})
		return
	}
	s.finishControl(w, "extend", s.ctl.Extend(time.Duration(sec)*time.Second))
}

func (s *Server) finishControl(w http.ResponseWriter, action string, err error) {
	switch {
	case err == nil:
		s.logger.Info("overlay_control", zap.String("action", action))
		writeJSON(w, http.StatusOK, s.snapshot())
	case errors.Is(err, round.ErrRoundNotOpen), errors.Is(err, round.ErrTimerDisabled):
		writeJSON(w, http.StatusConflict, votedto.Error{Code: "conflict", Message: err.Error()})
	default:
		s.logger.Error("overlay_control_failed", zap.String("action", action), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, votedto.Error{Code: "internal", Message: err.Error()})
	}
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, votedto.Error{Code: "bad_limit", Message: "limit must be positive"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	recs, err := s.history.Recent(r.Context(), s.channel, limit)
	if err != nil {
		s.logger.Error("overlay_history_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, votedto.Error{Code: "internal", Message: "history unavailable"})
		return
	}
	out := make([]votedto.Episode, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ToDTOEpisode(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) pgn(w http.ResponseWriter, r *http.Request) {
	pgn, err := s.history.PGNFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil || pgn == "" {
		writeJSON(w, http.StatusNotFound, votedto.Error{Code: "not_found", Message: "no such episode"})
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(pgn))
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, votedto.Error{Code: "unauthorized", Message: "bad token"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
