package main

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/scbot-go/scbot/internal/config"
	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/engine"
	"github.com/scbot-go/scbot/internal/metrics"
)

// newEngine wires a one-shot Engine for CLI commands that need to
// reconcile a single PR outside the long-running server process.
func newEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	log := newLogger()
	m := metrics.New()

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}
	locks, err := newLockService(cfg, m, log)
	if err != nil {
		return nil, err
	}
	api, err := newGitHubClient(ctx, cfg, m, log)
	if err != nil {
		return nil, err
	}
	return engine.New(store, api, locks, cfg.LockTimeout(), log, cfg.RepositoryDefaults()), nil
}

func newPullRequestsCmd() *cobra.Command {
	pr := &cobra.Command{Use: "pull-requests", Short: "Operate on pull requests"}

	pr.AddCommand(&cobra.Command{
		Use:   "sync <owner>/<name> <number>",
		Short: "Synchronize (create if unknown, then reconcile) one pull request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepoPath(args[0])
			if err != nil {
				return err
			}
			number, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid pull request number %q", args[1])
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			eng, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return eng.Synchronize(cmd.Context(), domain.Handle{Owner: owner, Name: name, Number: number})
		},
	})

	return pr
}
