package vault

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-access-vault/internal/audit"
	"github.com/goliatone/go-access-vault/internal/credentials"
	"github.com/goliatone/go-access-vault/internal/di"
	"github.com/goliatone/go-access-vault/internal/reminders"
	"github.com/goliatone/go-access-vault/internal/shares"
	"github.com/goliatone/go-access-vault/pkg/activity"
	"github.com/goliatone/go-access-vault/pkg/adapters"
	"github.com/goliatone/go-access-vault/pkg/commands"
	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/notify"
	"github.com/goliatone/go-access-vault/pkg/interfaces/params"
	"github.com/goliatone/go-access-vault/pkg/keys"
	"github.com/goliatone/go-access-vault/pkg/ratelimit"
	"github.com/goliatone/go-access-vault/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Public aliases for the service inputs and projections so hosts can call
// the services without importing internal packages.
type (
	CredentialInput = credentials.Input
	CredentialPatch = credentials.Patch
	SecretInput     = credentials.SecretInput
	Detail          = credentials.Detail
	Summary         = credentials.Summary
	Dashboard       = credentials.Dashboard
	SweepResult     = shares.SweepResult
	ReminderResult  = reminders.Result

	CredentialService = credentials.Service
	ShareService      = shares.Service
	ReminderService   = reminders.Service
	AuditService      = audit.Service
)

// ModuleOptions configure the vault module facade.
type ModuleOptions struct {
	Config     config.Config
	Storage    storage.Providers
	Logger     logger.Logger
	Identity   identity.Directory
	Adapters   []adapters.Messenger
	Notifier   notify.Notifier
	Activity   activity.Hooks
	Params     params.Store
	Counter    ratelimit.Counter
	Redis      redis.UniversalClient
	Registerer prometheus.Registerer
	Clock      func() time.Time
	Getenv     func(string) string
}

// Module bundles the container and exposes high-level accessors.
type Module struct {
	container *di.Container
}

// NewModule assembles repositories, the crypto engine, services and commands.
func NewModule(ctx context.Context, opts ModuleOptions) (*Module, error) {
	container, err := di.New(ctx, di.Options{
		Config:     opts.Config,
		Storage:    opts.Storage,
		Logger:     opts.Logger,
		Identity:   opts.Identity,
		Adapters:   opts.Adapters,
		Notifier:   opts.Notifier,
		Activity:   opts.Activity,
		Params:     opts.Params,
		Counter:    opts.Counter,
		Redis:      opts.Redis,
		Registerer: opts.Registerer,
		Clock:      opts.Clock,
		Getenv:     opts.Getenv,
	})
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Credentials returns the credential store service.
func (m *Module) Credentials() *CredentialService {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Credentials
}

// Shares returns the share ledger.
func (m *Module) Shares() *ShareService {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Shares
}

// Reminders returns the rotation reminder scheduler.
func (m *Module) Reminders() *ReminderService {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Reminders
}

func (m *Module) Audit() *AuditService {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Audit
}

// Commands returns the go-command registry.
func (m *Module) Commands() *commands.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Commands
}

// AdapterRegistry exposes the configured messenger registry.
func (m *Module) AdapterRegistry() *adapters.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Adapters
}

// KeySource reports where the master key came from. Empty when no key could
// be resolved; secret operations fail until one is configured.
func (m *Module) KeySource() keys.Source {
	if m == nil || m.container == nil {
		return ""
	}
	return m.container.KeySource
}

// Healthy reports whether the crypto engine is usable.
func (m *Module) Healthy() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Engine.Err()
}

// Tick runs one periodic pass: expired shares are swept, then rotation
// reminders are sent. Both run even when the first fails.
func (m *Module) Tick(ctx context.Context, now time.Time) (SweepResult, ReminderResult, error) {
	if m == nil || m.container == nil {
		return SweepResult{}, ReminderResult{}, errors.New("vault: module not initialised")
	}
	swept, sweepErr := m.container.Shares.Sweep(ctx, now)
	reminded, remindErr := m.container.Reminders.Run(ctx, now)
	return swept, reminded, errors.Join(sweepErr, remindErr)
}

// Config returns the effective module configuration.
func (m *Module) Config() config.Config {
	if m == nil || m.container == nil {
		return config.Config{}
	}
	return m.container.Config
}

// Container returns the internal DI container.
// This is exposed for advanced use cases like direct storage access.
func (m *Module) Container() *di.Container {
	if m == nil {
		return nil
	}
	return m.container
}
