package main

import (
	"github.com/spf13/cobra"

	"github.com/scbot-go/scbot/internal/config"
	"github.com/scbot-go/scbot/internal/ghapi/fake"
	"github.com/scbot-go/scbot/internal/lock/memorylock"
	"github.com/scbot-go/scbot/internal/metrics"
	"github.com/scbot-go/scbot/internal/storage/memory"
)

func newDebugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Run the server against in-memory storage and a fake GitHub API, for local smoke-testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			m := metrics.New()
			store := memory.New()
			locks := m.LockService(memorylock.New(nil))
			api := fake.New(cfg.BotUsername)

			log.Warn("running in debug mode: storage and GitHub API are in-memory fakes, nothing persists")
			return runServerWithDeps(cmd.Context(), cfg, store, locks, api, m, log)
		},
	}
}
