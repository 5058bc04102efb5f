package main

import (
	"context"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/config"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/ghapi/fake"
	"github.com/scbot-go/scbot/internal/ghclient"
	"github.com/scbot-go/scbot/internal/lock"
	"github.com/scbot-go/scbot/internal/lock/memorylock"
	"github.com/scbot-go/scbot/internal/lock/redislock"
	"github.com/scbot-go/scbot/internal/metrics"
	"github.com/scbot-go/scbot/internal/storage"
	"github.com/scbot-go/scbot/internal/storage/memory"
	"github.com/scbot-go/scbot/internal/storage/postgres"
)

// memoryDSN is BOT_DATABASE_URL's escape hatch to the in-memory store,
// for local smoke-testing without Postgres.
const memoryDSN = "memory"

func newLogger() *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	return logrus.NewEntry(log).WithField("component", "scbot")
}

func newStorage(cfg *config.Config) (storage.Interface, error) {
	if cfg.DatabaseURL == memoryDSN {
		return memory.New(), nil
	}
	store, err := postgres.Connect(cfg.DatabaseURL, cfg.DatabasePoolSize)
	if err != nil {
		return nil, errors.Wrap(err, "connect storage")
	}
	return store, nil
}

func newLockService(cfg *config.Config, m *metrics.Metrics, log *logrus.Entry) (lock.Service, error) {
	var svc lock.Service
	if cfg.RedisAddress == "" {
		svc = memorylock.New(nil)
	} else {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddress})
		rl, err := redislock.New(client, 1, log)
		if err != nil {
			return nil, errors.Wrap(err, "build redis lock service")
		}
		svc = rl
	}
	return m.LockService(svc), nil
}

// newGitHubClient builds the production ghapi.Client from
// BOT_GITHUB_APP_* installation auth; when no app private key is set it
// falls back to the in-memory fake, for local smoke-testing.
func newGitHubClient(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logrus.Entry) (ghapi.Client, error) {
	switch {
	case cfg.GitHubAppPrivateKey != "":
		source, err := ghclient.NewAppTokenSource(cfg.GitHubAppID, cfg.GitHubAppInstallationID, []byte(cfg.GitHubAppPrivateKey))
		if err != nil {
			return nil, errors.Wrap(err, "build github app token source")
		}
		httpClient := ghclient.NewAppAuthenticatedHTTPClient(ctx, source)
		gh := ghclient.NewGitHubClient(httpClient)
		return ghclient.New(gh, cfg.BotUsername, log, m.GitHubAPICalls()), nil
	default:
		return fake.New(cfg.BotUsername), nil
	}
}
