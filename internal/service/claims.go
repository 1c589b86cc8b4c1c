package service

import (
	"context"
	"sync"
	"time"
)

// localClaims is an in-process Deduper for single-instance deployments.
type localClaims struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func newLocalClaims() *localClaims {
	return &localClaims{keys: make(map[string]time.Time), now: time.Now}
}

func (l *localClaims) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	for k, exp := range l.keys {
		if !now.Before(exp) {
			delete(l.keys, k)
		}
	}
	l.keys[key] = now.Add(ttl)
	return true, nil
}

func (l *localClaims) ForgetOnce(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}
