// Package relay pairs two chat rooms into one game over Redis.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Manager struct {
	rdb    *redis.Client
	store  *Store
	logger *zap.Logger
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

func NewManager(rdb *redis.Client, opts ...Option) *Manager {
	m := &Manager{rdb: rdb, store: NewStore(rdb), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dial connects to REDIS_URL and pings.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for relay")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Create opens a session hosted by host, who plays white.
func (m *Manager) Create(ctx context.Context, host, channel string) (*Meta, error) {
	if strings.TrimSpace(host) == "" {
		return nil, ErrInvalidArgs
	}
	for i := 0; i < 8; i++ {
		code, err := codeGen()
		if err != nil {
			return nil, err
		}
		meta := &Meta{
			Code:        code,
			State:       StateWaiting,
			CreatedAt:   time.Now().UTC(),
			Host:        host,
			HostChannel: domain.ChannelName(channel),
		}
		ok, err := m.store.reserve(ctx, meta)
		if err != nil {
			return nil, err
		}
		if ok {
			m.logger.Info("relay_create", zap.String("code", code), zap.String("host", host))
			return meta, nil
		}
	}
	return nil, fmt.Errorf("failed to allocate relay code")
}

// Join seats guest as black. Joining again under the same name is a reconnect.
func (m *Manager) Join(ctx context.Context, code, guest, channel string) (*Meta, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidCode(code) || strings.TrimSpace(guest) == "" {
		return nil, ErrInvalidArgs
	}
	key := keyMeta(code)
	var joined *Meta
	err := m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionGone
		}
		if err != nil {
			return err
		}
		var meta Meta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return err
		}
		switch {
		case meta.State == StateFinished:
			return ErrSessionFinished
		case domain.SameUser(meta.Host, guest):
			return ErrInvalidArgs
		case meta.Guest != "" && !domain.SameUser(meta.Guest, guest):
			return ErrSessionFull
		}
		meta.Guest = guest
		meta.GuestChannel = domain.ChannelName(channel)
		meta.State = StateReady
		out, err := json.Marshal(&meta)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, ttlSession)
			return nil
		})
		joined = &meta
		return err
	}, key)
	if err != nil {
		m.logger.Warn("relay_join_error", zap.String("code", code), zap.String("guest", guest), zap.Error(err))
		return nil, err
	}
	m.logger.Info("relay_join", zap.String("code", code), zap.String("guest", guest))
	_ = NewBus(m.rdb, code).Publish(ctx, Envelope{Type: TypeReady, From: domain.TeamBlack})
	return joined, nil
}

// Reconnect resolves which side name plays in an existing session.
func (m *Manager) Reconnect(ctx context.Context, code, name string) (*Meta, domain.Team, error) {
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, domain.TeamWhite, err
	}
	if meta == nil {
		return nil, domain.TeamWhite, ErrSessionGone
	}
	if meta.State == StateFinished {
		return nil, domain.TeamWhite, ErrSessionFinished
	}
	team, ok := meta.TeamOf(name)
	if !ok {
		return nil, domain.TeamWhite, ErrNotParticipant
	}
	m.logger.Info("relay_reconnect", zap.String("code", meta.Code), zap.String("name", name), zap.String("team", team.String()))
	return meta, team, nil
}

// Finish marks the session over; later joins fail.
func (m *Manager) Finish(ctx context.Context, code string) error {
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrSessionGone
	}
	meta.State = StateFinished
	return m.store.SaveMeta(ctx, meta)
}

func (m *Manager) Meta(ctx context.Context, code string) (*Meta, error) {
	return m.store.LoadMeta(ctx, code)
}

// WaitReady blocks until the session has a guest.
func (m *Manager) WaitReady(ctx context.Context, code string) (*Meta, error) {
	bus := NewBus(m.rdb, code)
	sub, err := bus.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	defer sub.Close()
	// the guest may have joined before the subscription existed
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrSessionGone
	}
	if meta.State == StateReady {
		return meta, nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case env, ok := <-sub.C:
			if !ok {
				return nil, ErrSessionGone
			}
			if env.Type == TypeReady {
				return m.store.LoadMeta(ctx, code)
			}
		}
	}
}
