// Package session keeps per-visitor state server side, keyed by an opaque
// cookie. The session owns the cart key and the checkout state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/redisclient"

	"github.com/google/uuid"
)

// Session is the server-side record behind the cookie.
type Session struct {
	ID        string          `json:"id"`
	Checkout  *checkout.State `json:"checkout,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`

	dirty bool
}

// NewSession creates a session with a fresh random id.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		dirty:     true,
	}
}

// MarkDirty flags the session for persistence at the end of the request.
func (s *Session) MarkDirty() { s.dirty = true }

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

// Store persists sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// ErrNotFound is returned by Load for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// RedisStore stores sessions as JSON under session:<id>.
type RedisStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedisStore(client *redisclient.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(id string) string { return "session:" + id }

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, ok, err := r.client.GetValue(ctx, redisKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.SetValue(ctx, redisKey(s.ID), raw, r.ttl); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Delete(ctx, redisKey(id))
}

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Values are serialized so callers
// never share a pointer with the store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if ok && m.now().After(entry.expiresAt) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var s Session
	if err := json.Unmarshal(entry.raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[s.ID] = memoryEntry{raw: raw, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	s.dirty = false
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}
