// Package memorylock is a process-local lock.Service for tests and the
// CLI's debug mode. It polls for lock availability using an injectable
// sleep function, per spec.md §5 ("the wait-lock primitive uses an
// injected sleep so tests can drive time").
package memorylock

import (
	"context"
	"sync"
	"time"

	"github.com/scbot-go/scbot/internal/lock"
)

const pollInterval = 10 * time.Millisecond

// SleepFunc is injected so tests can fast-forward time instead of really
// sleeping.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RealSleep is the production SleepFunc.
func RealSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Service is a mutex-map lock.Service plus a TTL key/value store.
type Service struct {
	sleep SleepFunc

	mu    sync.Mutex
	held  map[string]bool
	kv    map[string]kvEntry
}

type kvEntry struct {
	value   string
	expires time.Time
}

func New(sleep SleepFunc) *Service {
	if sleep == nil {
		sleep = RealSleep
	}
	return &Service{sleep: sleep, held: map[string]bool{}, kv: map[string]kvEntry{}}
}

var _ lock.Service = (*Service)(nil)

type heldLock struct {
	svc *Service
	key string
}

func (l *heldLock) Release(_ context.Context) error {
	l.svc.mu.Lock()
	defer l.svc.mu.Unlock()
	delete(l.svc.held, l.key)
	return nil
}

func (s *Service) WaitLock(ctx context.Context, key string, timeout time.Duration) (lock.Lock, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		if !s.held[key] {
			s.held[key] = true
			s.mu.Unlock()
			return &heldLock{svc: s, key: key}, nil
		}
		s.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, &lock.TimeoutError{Key: key}
		}
		if err := s.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
}

func (s *Service) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.kv[key]
	if !ok || (!e.expires.IsZero() && time.Now().After(e.expires)) {
		delete(s.kv, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *Service) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.kv[key] = kvEntry{value: value, expires: exp}
	return nil
}

func (s *Service) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}
