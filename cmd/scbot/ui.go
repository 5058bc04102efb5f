package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// newUICmd stubs out the terminal UI named in spec.md's out-of-scope
// list. Kept as a command so `scbot ui` fails with a clear message
// instead of "unknown command".
func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:    "ui",
		Short:  "Terminal UI (not implemented)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("scbot ui: not implemented, use the server's HTTP API and the repositories/pull-requests subcommands instead")
		},
	}
}
