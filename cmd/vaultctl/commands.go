package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access-vault/pkg/commands"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/keys"
	"github.com/goliatone/go-access-vault/pkg/storage"
	"github.com/goliatone/go-access-vault/pkg/vault"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a base64 encoded 32 byte master key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := keys.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the vault tables in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			cfg, lgr, err := opts.load()
			if err != nil {
				return err
			}
			if strings.EqualFold(cfg.Storage.Driver, storage.DriverMemory) {
				fmt.Fprintln(cmd.OutOrStdout(), "memory storage: nothing to migrate")
				return nil
			}
			db, err := storage.Open(ctx, cfg.Storage, lgr)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s storage\n", cfg.Storage.Driver)
			return nil
		},
	}
}

func newSweepSharesCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep-shares",
		Short: "Deactivate temporary shares past their expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseAt(at)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			module, closeFn, err := opts.module(ctx, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			var res vault.SweepResult
			if err := module.Commands().SweepShares.Execute(ctx, commands.SweepShares{Now: now, Result: &res}); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate expiry at this RFC3339 time instead of now")
	return cmd
}

func newSendRemindersCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "send-reminders",
		Short: "Notify owners of credentials due for rotation today or tomorrow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseAt(at)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			module, closeFn, err := opts.module(ctx, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			var res vault.ReminderResult
			if err := module.Commands().SendReminders.Execute(ctx, commands.SendReminders{Now: now, Result: &res}); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate rotation at this RFC3339 time instead of now")
	return cmd
}

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	var (
		actor  string
		admin  bool
		groups []string
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard projection visible to an actor as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor = strings.TrimSpace(actor)
			if actor == "" {
				return errors.New("--actor is required")
			}
			dir := identity.NewStatic()
			dir.SetAdmin(actor, admin)
			dir.SetGroups(actor, splitList(groups)...)

			ctx, cancel := opts.context(cmd)
			defer cancel()

			module, closeFn, err := opts.module(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			dash, err := module.Credentials().Dashboard(ctx, actor)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), dash)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "identity the projection is computed for")
	cmd.Flags().BoolVar(&admin, "admin", false, "treat the actor as an administrator")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "group memberships of the actor")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vaultctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vaultctl %s\n", version)
		},
	}
}

func parseAt(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: %w", err)
	}
	return t, nil
}
