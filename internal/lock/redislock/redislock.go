// Package redislock is the production lock.Service: a redsync-backed
// distributed mutex over Redis, the "Redis-shaped lock store" spec.md §5
// calls the only source of cross-process mutual exclusion. Grounded on
// harness-Harness's go.mod pairing of go-redis/redis with
// go-redsync/redsync for exactly this "named advisory lock across bot
// instances" concern (no source for it was retrieved from the pack; the
// wiring below follows redsync's documented idiom).
package redislock

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	goredis "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/lock"
)

// Service is a redsync-backed lock.Service, plus a plain Redis
// string+TTL implementation of the timed key/value store.
type Service struct {
	client *goredis.Client
	rs     *redsync.Redsync
	ids    *snowflake.Node
	log    *logrus.Entry
}

// New builds a Service. nodeID distinguishes this bot instance's
// fencing tokens from any other instance sharing the same Redis, so a
// stale lock holder's acquisition can be told apart from the current
// one in logs.
func New(client *goredis.Client, nodeID int64, log *logrus.Entry) (*Service, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	pool := redsyncredis.NewPool(client)
	return &Service{client: client, rs: redsync.New(pool), ids: node, log: log}, nil
}

var _ lock.Service = (*Service)(nil)

type heldMutex struct {
	m     *redsync.Mutex
	token snowflake.ID
	log   *logrus.Entry
}

func (h *heldMutex) Release(_ context.Context) error {
	_, err := h.m.Unlock()
	h.log.WithField("fencing-token", h.token).Debug("released lock")
	return err
}

// WaitLock polls redsync's TryLock until acquired or timeout elapses,
// since redsync has no context-aware blocking acquire of its own. Each
// acquisition is tagged with a snowflake fencing token, logged so a
// reconcile that outlives its lock's TTL is visible in the logs rather
// than silently racing the next holder.
func (s *Service) WaitLock(ctx context.Context, key string, timeout time.Duration) (lock.Lock, error) {
	mutex := s.rs.NewMutex(key, redsync.WithExpiry(30*time.Second), redsync.WithTries(1))
	deadline := time.Now().Add(timeout)
	for {
		if err := mutex.LockContext(ctx); err == nil {
			token := s.ids.Generate()
			s.log.WithFields(logrus.Fields{"key": key, "fencing-token": token}).Debug("acquired lock")
			return &heldMutex{m: mutex, token: token, log: s.log}, nil
		}
		if time.Now().After(deadline) {
			return nil, &lock.TimeoutError{Key: key}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Service) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Service) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
