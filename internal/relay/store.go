package relay

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ttlSession = 12 * time.Hour
	codeLen    = 4
)

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func keyMeta(code string) string   { return "relay:" + strings.ToUpper(strings.TrimSpace(code)) }
func keyEvents(code string) string { return keyMeta(code) + ":events" }

func (s *Store) SaveMeta(ctx context.Context, meta *Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyMeta(meta.Code), raw, ttlSession).Err()
}

// LoadMeta returns nil, nil when the session does not exist.
func (s *Store) LoadMeta(ctx context.Context, code string) (*Meta, error) {
	raw, err := s.rdb.Get(ctx, keyMeta(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// reserve claims a fresh code key. ok is false when the code is taken.
func (s *Store) reserve(ctx context.Context, meta *Meta) (bool, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, keyMeta(meta.Code), raw, ttlSession).Result()
}

// codeGen returns codeLen characters from A-Z0-9.
func codeGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, codeLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}

// ValidCode reports whether s has the session code shape.
func ValidCode(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != codeLen {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
