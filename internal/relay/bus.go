package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bus is the pub/sub channel shared by both rooms of a session.
type Bus struct {
	rdb  *redis.Client
	code string
}

func NewBus(rdb *redis.Client, code string) *Bus { return &Bus{rdb: rdb, code: code} }

func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	if env.SentAt.IsZero() {
		env.SentAt = time.Now().UTC()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, keyEvents(b.code), raw).Err()
}

// Subscription delivers decoded envelopes on C until Close.
type Subscription struct {
	C <-chan Envelope

	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

// Subscribe returns once Redis confirmed the subscription, so nothing published
// afterwards is missed.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, keyEvents(b.code))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan Envelope, 64)
	sub := &Subscription{C: out, ps: ps, done: make(chan struct{})}
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			select {
			case out <- env:
			case <-sub.done:
				return
			}
		}
	}()
	return sub, nil
}

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
