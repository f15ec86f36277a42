package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/storage"
	"github.com/goliatone/go-access-vault/pkg/vault"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operate an access vault: keys, storage and periodic jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML config file (ACCESS_VAULT_* env vars override it)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "abort the command after this long")

	root.AddCommand(
		newKeygenCmd(),
		newMigrateCmd(opts),
		newSweepSharesCmd(opts),
		newSendRemindersCmd(opts),
		newDashboardCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) load() (config.Config, logger.Logger, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, logger.New(os.Stderr, cfg.Logging.Level), nil
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// module opens storage and builds the vault module. The returned close
// function releases the database handle.
func (o *rootOptions) module(ctx context.Context, dir identity.Directory) (*vault.Module, func() error, error) {
	cfg, lgr, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	providers, closeFn, err := storage.Build(ctx, cfg.Storage, lgr)
	if err != nil {
		return nil, nil, err
	}
	module, err := vault.NewModule(ctx, vault.ModuleOptions{
		Config:   cfg,
		Storage:  providers,
		Logger:   lgr,
		Identity: dir,
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return module, closeFn, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
