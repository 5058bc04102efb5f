// Command scbot is the CLI front-end wiring the reconciliation engine,
// command dispatcher, webhook ingress and external RPC (C1-C12) into
// runnable subcommands, grounded on verustcode-verustcode's cobra
// root-command layout (there: `serve`/`version`; here: the subcommand
// tree spec.md §6 names).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scbot",
		Short:         "GitHub pull-request orchestration bot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServerCmd())
	root.AddCommand(newAuthCmd())
	root.AddCommand(newPullRequestsCmd())
	root.AddCommand(newRepositoriesCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newDebugCmd())
	root.AddCommand(newUICmd())
	return root
}
