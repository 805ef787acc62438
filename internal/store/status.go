// Package store persists quote lifecycle status so callers can poll a quote
// while its deep pass runs in the background. Redis is the primary backend;
// when it is unreachable at startup the service degrades to an in-process
// map so single-node deployments still work.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Quote lifecycle states.
const (
	StatusEstimated = "estimated"
	StatusAnalyzing = "analyzing"
	StatusReady     = "ready"
	StatusFailed    = "failed"
)

// QuoteStatus is the pollable state of one quote.
type QuoteStatus struct {
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Message  string                 `json:"message"`
	Start    *time.Time             `json:"start_time,omitempty"`
	End      *time.Time             `json:"end_time,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StatusStore abstracts the status backend.
type StatusStore interface {
	Set(ctx context.Context, quoteID string, st QuoteStatus) error
	Get(ctx context.Context, quoteID string) (QuoteStatus, bool, error)
	Close() error
}

// New returns a Redis-backed store when redisURL is reachable, an in-memory
// one otherwise. ttl bounds how long finished quotes stay pollable.
func New(redisURL string, ttl time.Duration) StatusStore {
	if redisURL != "" {
		s, err := NewRedisStatus(redisURL, ttl)
		if err == nil {
			log.Info().Msg("quote status store backed by redis")
			return s
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to in-memory status store")
	}
	return NewMemoryStatus(ttl)
}

// RedisStatus stores quote status as Redis hashes under the quote namespace.
type RedisStatus struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisStatus(redisURL string, ttl time.Duration) (*RedisStatus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStatus{client: c, keyNS: "quote", ttl: ttl}, nil
}

func (s *RedisStatus) key(quoteID string) string {
	return fmt.Sprintf("%s:%s:status", s.keyNS, quoteID)
}

func (s *RedisStatus) Set(ctx context.Context, quoteID string, st QuoteStatus) error {
	m := map[string]interface{}{
		"status":   st.Status,
		"progress": st.Progress,
		"message":  st.Message,
	}
	if st.Start != nil {
		m["start"] = st.Start.Format(time.RFC3339Nano)
	}
	if st.End != nil {
		m["end"] = st.End.Format(time.RFC3339Nano)
	}
	if st.Metadata != nil {
		b, _ := json.Marshal(st.Metadata)
		m["metadata"] = string(b)
	}
	key := s.key(quoteID)
	if err := s.client.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.client.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

func (s *RedisStatus) Get(ctx context.Context, quoteID string) (QuoteStatus, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(quoteID)).Result()
	if err != nil {
		return QuoteStatus{}, false, err
	}
	if len(res) == 0 {
		return QuoteStatus{}, false, nil
	}
	st := QuoteStatus{Status: res["status"], Message: res["message"]}
	if p := res["progress"]; p != "" {
		var pi int
		fmt.Sscan(p, &pi)
		st.Progress = pi
	}
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.End = &t
		}
	}
	if v := res["metadata"]; v != "" {
		_ = json.Unmarshal([]byte(v), &st.Metadata)
	}
	return st, true, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }

// MemoryStatus is the single-process fallback backend.
type MemoryStatus struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	status  QuoteStatus
	expires time.Time
}

func NewMemoryStatus(ttl time.Duration) *MemoryStatus {
	return &MemoryStatus{entries: make(map[string]memoryEntry), ttl: ttl}
}

func (s *MemoryStatus) Set(ctx context.Context, quoteID string, st QuoteStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{status: st}
	if s.ttl > 0 {
		entry.expires = time.Now().Add(s.ttl)
	}
	s.entries[quoteID] = entry
	return nil
}

func (s *MemoryStatus) Get(ctx context.Context, quoteID string) (QuoteStatus, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[quoteID]
	s.mu.RUnlock()
	if !ok {
		return QuoteStatus{}, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		s.mu.Lock()
		delete(s.entries, quoteID)
		s.mu.Unlock()
		return QuoteStatus{}, false, nil
	}
	return entry.status, true, nil
}

func (s *MemoryStatus) Close() error { return nil }
