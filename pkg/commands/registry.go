package commands

import (
	"errors"
	"time"

	internalcommands "github.com/goliatone/go-access-vault/internal/commands"
	"github.com/goliatone/go-access-vault/internal/credentials"
	"github.com/goliatone/go-access-vault/internal/reminders"
	"github.com/goliatone/go-access-vault/internal/shares"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	command "github.com/goliatone/go-command"
)

// Re-export request types so consumers need not import internal packages.
type (
	CreateCredential = internalcommands.CreateCredential
	UpdateCredential = internalcommands.UpdateCredential
	DeleteCredential = internalcommands.DeleteCredential
	SetSecret        = internalcommands.SetSecret
	GrantShare       = internalcommands.GrantShare
	RevokeShare      = internalcommands.RevokeShare
	SweepShares      = internalcommands.SweepShares
	SendReminders    = internalcommands.SendReminders
)

// Registry exposes go-command compatible handlers backed by the module services.
type Registry struct {
	Catalog          *internalcommands.Catalog
	CreateCredential command.Commander[CreateCredential]
	UpdateCredential command.Commander[UpdateCredential]
	DeleteCredential command.Commander[DeleteCredential]
	SetSecret        command.Commander[SetSecret]
	GrantShare       command.Commander[GrantShare]
	RevokeShare      command.Commander[RevokeShare]
	SweepShares      command.Commander[SweepShares]
	SendReminders    command.Commander[SendReminders]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Credentials *credentials.Service
	Shares      *shares.Service
	Reminders   *reminders.Service
	Logger      logger.Logger
	Clock       func() time.Time
}

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	// typed nil pointers would slip past the catalog's interface checks
	switch {
	case deps.Credentials == nil:
		return nil, errors.New("commands: credentials service is required")
	case deps.Shares == nil:
		return nil, errors.New("commands: shares service is required")
	case deps.Reminders == nil:
		return nil, errors.New("commands: reminders service is required")
	}
	catalog, err := internalcommands.NewCatalog(internalcommands.Dependencies{
		Credentials: deps.Credentials,
		Shares:      deps.Shares,
		Reminders:   deps.Reminders,
		Logger:      deps.Logger,
		Clock:       deps.Clock,
	})
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:          catalog,
		CreateCredential: catalog.CreateCredential,
		UpdateCredential: catalog.UpdateCredential,
		DeleteCredential: catalog.DeleteCredential,
		SetSecret:        catalog.SetSecret,
		GrantShare:       catalog.GrantShare,
		RevokeShare:      catalog.RevokeShare,
		SweepShares:      catalog.SweepShares,
		SendReminders:    catalog.SendReminders,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.CreateCredential,
		r.UpdateCredential,
		r.DeleteCredential,
		r.SetSecret,
		r.GrantShare,
		r.RevokeShare,
		r.SweepShares,
		r.SendReminders,
	}
}
