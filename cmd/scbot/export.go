package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/scbot-go/scbot/internal/config"
	"github.com/scbot-go/scbot/internal/storage"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.yaml>",
		Short: "Export every repository and pull request to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := newStorage(cfg)
			if err != nil {
				return err
			}
			snap, err := storage.Export(cmd.Context(), store)
			if err != nil {
				return err
			}
			data, err := storage.MarshalSnapshot(snap)
			if err != nil {
				return err
			}
			return os.WriteFile(args[0], data, 0o644)
		},
	}
}
