package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scbot-go/scbot/internal/authsvc"
	"github.com/scbot-go/scbot/internal/config"
)

func newAuthSvc() (*authsvc.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}
	return authsvc.New(store, newLogger()), nil
}

func newAuthCmd() *cobra.Command {
	auth := &cobra.Command{Use: "auth", Short: "Manage admins and external accounts"}
	auth.AddCommand(newAuthAdminsCmd())
	auth.AddCommand(newAuthExternalAccountsCmd())
	return auth
}

func newAuthAdminsCmd() *cobra.Command {
	admins := &cobra.Command{Use: "admins", Short: "Manage bot admins"}

	admins.AddCommand(&cobra.Command{
		Use:  "add <username>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			return svc.AddAdmin(cmd.Context(), args[0])
		},
	})

	admins.AddCommand(&cobra.Command{
		Use:  "remove <username>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			return svc.RemoveAdmin(cmd.Context(), args[0])
		},
	})

	admins.AddCommand(&cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			list, err := svc.ListAdmins(cmd.Context())
			if err != nil {
				return err
			}
			for _, a := range list {
				fmt.Println(a.Username)
			}
			return nil
		},
	})

	return admins
}

func newAuthExternalAccountsCmd() *cobra.Command {
	accounts := &cobra.Command{Use: "external-accounts", Short: "Manage external RPC accounts"}

	accounts.AddCommand(&cobra.Command{
		Use:  "add <username>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			account, err := svc.AddExternalAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(account.PublicKey)
			return nil
		},
	})

	accounts.AddCommand(&cobra.Command{
		Use:  "remove <username>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			return svc.RemoveExternalAccount(cmd.Context(), args[0])
		},
	})

	accounts.AddCommand(&cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			list, err := svc.ListExternalAccounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, a := range list {
				fmt.Println(a.Username)
			}
			return nil
		},
	})

	accounts.AddCommand(&cobra.Command{
		Use:  "add-right <username> <owner>/<name>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepoPath(args[1])
			if err != nil {
				return err
			}
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			return svc.GrantRight(cmd.Context(), args[0], owner, name)
		},
	})

	accounts.AddCommand(&cobra.Command{
		Use:  "remove-right <username> <owner>/<name>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepoPath(args[1])
			if err != nil {
				return err
			}
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			return svc.RevokeRight(cmd.Context(), args[0], owner, name)
		},
	})

	accounts.AddCommand(&cobra.Command{
		Use:  "remove-all-rights <username>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			return svc.RevokeAllRights(cmd.Context(), args[0])
		},
	})

	accounts.AddCommand(&cobra.Command{
		Use:  "generate-token <username>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newAuthSvc()
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(cmd.Context(), args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	})

	return accounts
}
