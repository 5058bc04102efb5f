package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scbot-go/scbot/internal/config"
	"github.com/scbot-go/scbot/internal/domain"
)

func newRepositoriesCmd() *cobra.Command {
	repos := &cobra.Command{Use: "repositories", Short: "Manage tracked repositories"}

	repos.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every repository the bot knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := newStorage(cfg)
			if err != nil {
				return err
			}
			list, err := store.ListRepositories(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range list {
				fmt.Printf("%s\t%s\n", r.Path(), r.DefaultStrategy)
			}
			return nil
		},
	})

	repos.AddCommand(&cobra.Command{
		Use:   "add <owner>/<name>",
		Short: "Register a repository with the bot's configured defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepoPath(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := newStorage(cfg)
			if err != nil {
				return err
			}
			repo := cfg.RepositoryDefaults()
			repo.Owner, repo.Name = owner, name
			return store.CreateRepository(cmd.Context(), &repo)
		},
	})

	repos.AddCommand(&cobra.Command{
		Use:   "set-default-strategy <owner>/<name> <merge|squash|rebase>",
		Short: "Change a repository's default merge strategy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepoPath(args[0])
			if err != nil {
				return err
			}
			strategy := domain.MergeStrategy(args[1])
			if !strategy.Valid() {
				return fmt.Errorf("invalid merge strategy %q", args[1])
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := newStorage(cfg)
			if err != nil {
				return err
			}
			repo, err := store.GetRepository(cmd.Context(), owner, name)
			if err != nil {
				return err
			}
			repo.DefaultStrategy = strategy
			return store.UpdateRepository(cmd.Context(), repo)
		},
	})

	return repos
}
