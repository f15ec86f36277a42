package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-access-vault/internal/credentials"
	"github.com/goliatone/go-access-vault/internal/reminders"
	"github.com/goliatone/go-access-vault/internal/shares"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	command "github.com/goliatone/go-command"
	"github.com/google/uuid"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	CreateCredential command.Commander[CreateCredential]
	UpdateCredential command.Commander[UpdateCredential]
	DeleteCredential command.Commander[DeleteCredential]
	SetSecret        command.Commander[SetSecret]
	GrantShare       command.Commander[GrantShare]
	RevokeShare      command.Commander[RevokeShare]
	SweepShares      command.Commander[SweepShares]
	SendReminders    command.Commander[SendReminders]
}

type credentialService interface {
	Create(ctx context.Context, actor string, in credentials.Input) (*domain.Credential, error)
	Update(ctx context.Context, actor string, id uuid.UUID, patch credentials.Patch) (*domain.Credential, error)
	Delete(ctx context.Context, actor string, id uuid.UUID) error
	SetSecret(ctx context.Context, actor string, secretID uuid.UUID, plaintext string) (*domain.SecretView, error)
}

type shareService interface {
	Grant(ctx context.Context, actor string, credentialID uuid.UUID, grantee string, expiresAt time.Time) (*domain.Share, error)
	Revoke(ctx context.Context, actor string, shareID uuid.UUID) error
	Sweep(ctx context.Context, now time.Time) (shares.SweepResult, error)
}

type reminderService interface {
	Run(ctx context.Context, now time.Time) (reminders.Result, error)
}

// Dependencies wires services into the command catalog.
type Dependencies struct {
	Credentials credentialService
	Shares      shareService
	Reminders   reminderService
	Logger      logger.Logger
	Clock       func() time.Time
}

var errActorRequired = errors.New("commands: actor is required")

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Credentials == nil {
		return nil, errors.New("commands: credentials service is required")
	}
	if deps.Shares == nil {
		return nil, errors.New("commands: shares service is required")
	}
	if deps.Reminders == nil {
		return nil, errors.New("commands: reminders service is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Catalog{
		CreateCredential: createCredentialCommand{svc: deps.Credentials},
		UpdateCredential: updateCredentialCommand{svc: deps.Credentials},
		DeleteCredential: deleteCredentialCommand{svc: deps.Credentials},
		SetSecret:        setSecretCommand{svc: deps.Credentials},
		GrantShare:       grantShareCommand{svc: deps.Shares},
		RevokeShare:      revokeShareCommand{svc: deps.Shares},
		SweepShares:      sweepSharesCommand{svc: deps.Shares, logger: deps.Logger, now: deps.Clock},
		SendReminders:    sendRemindersCommand{svc: deps.Reminders, logger: deps.Logger, now: deps.Clock},
	}, nil
}

func actorOf(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", errActorRequired
	}
	return actor, nil
}

// CreateCredential creates a credential on behalf of Actor.
type CreateCredential struct {
	Actor string `json:"actor"`
	credentials.Input
	// Result receives the stored credential when set.
	Result *domain.Credential `json:"-"`
}

type createCredentialCommand struct {
	svc credentialService
}

func (c createCredentialCommand) Execute(ctx context.Context, msg CreateCredential) error {
	actor, err := actorOf(msg.Actor)
	if err != nil {
		return err
	}
	cred, err := c.svc.Create(ctx, actor, msg.Input)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = *cred
	}
	return nil
}

// UpdateCredential applies a partial update.
type UpdateCredential struct {
	Actor string    `json:"actor"`
	ID    uuid.UUID `json:"id"`
	credentials.Patch
}

type updateCredentialCommand struct {
	svc credentialService
}

func (c updateCredentialCommand) Execute(ctx context.Context, msg UpdateCredential) error {
	actor, err := actorOf(msg.Actor)
	if err != nil {
		return err
	}
	if msg.ID == uuid.Nil {
		return errors.New("commands: credential id is required")
	}
	_, err = c.svc.Update(ctx, actor, msg.ID, msg.Patch)
	return err
}

// DeleteCredential removes a credential and everything attached to it.
type DeleteCredential struct {
	Actor string    `json:"actor"`
	ID    uuid.UUID `json:"id"`
}

type deleteCredentialCommand struct {
	svc credentialService
}

func (c deleteCredentialCommand) Execute(ctx context.Context, msg DeleteCredential) error {
	actor, err := actorOf(msg.Actor)
	if err != nil {
		return err
	}
	return c.svc.Delete(ctx, actor, msg.ID)
}

// SetSecret stores a new plaintext for a secret slot.
type SetSecret struct {
	Actor     string    `json:"actor"`
	SecretID  uuid.UUID `json:"secret_id"`
	Plaintext string    `json:"plaintext"`
}

type setSecretCommand struct {
	svc credentialService
}

func (c setSecretCommand) Execute(ctx context.Context, msg SetSecret) error {
	actor, err := actorOf(msg.Actor)
	if err != nil {
		return err
	}
	_, err = c.svc.SetSecret(ctx, actor, msg.SecretID, msg.Plaintext)
	return err
}

// GrantShare gives Grantee temporary read access.
type GrantShare struct {
	Actor        string        `json:"actor"`
	CredentialID uuid.UUID     `json:"credential_id"`
	Grantee      string        `json:"grantee"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Result       *domain.Share `json:"-"`
}

type grantShareCommand struct {
	svc shareService
}

func (c grantShareCommand) Execute(ctx context.Context, msg GrantShare) error {
	actor, err := actorOf(msg.Actor)
	if err != nil {
		return err
	}
	share, err := c.svc.Grant(ctx, actor, msg.CredentialID, msg.Grantee, msg.ExpiresAt)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = *share
	}
	return nil
}

// RevokeShare deactivates a share.
type RevokeShare struct {
	Actor   string    `json:"actor"`
	ShareID uuid.UUID `json:"share_id"`
}

type revokeShareCommand struct {
	svc shareService
}

func (c revokeShareCommand) Execute(ctx context.Context, msg RevokeShare) error {
	actor, err := actorOf(msg.Actor)
	if err != nil {
		return err
	}
	return c.svc.Revoke(ctx, actor, msg.ShareID)
}

// SweepShares expires overdue shares. A zero Now uses the current time.
type SweepShares struct {
	Now    time.Time           `json:"now"`
	Result *shares.SweepResult `json:"-"`
}

type sweepSharesCommand struct {
	svc    shareService
	logger logger.Logger
	now    func() time.Time
}

func (c sweepSharesCommand) Execute(ctx context.Context, msg SweepShares) error {
	now := msg.Now
	if now.IsZero() {
		now = c.now()
	}
	res, err := c.svc.Sweep(ctx, now)
	if err != nil {
		c.logger.Error("sweep shares command failed", logger.Err(err))
		return err
	}
	c.logger.Debug("sweep shares command", logger.Field{Key: "expired", Value: res.Expired})
	if msg.Result != nil {
		*msg.Result = res
	}
	return nil
}

// SendReminders runs the rotation reminder batch. A zero Now uses the current
// time.
type SendReminders struct {
	Now    time.Time         `json:"now"`
	Result *reminders.Result `json:"-"`
}

type sendRemindersCommand struct {
	svc    reminderService
	logger logger.Logger
	now    func() time.Time
}

func (c sendRemindersCommand) Execute(ctx context.Context, msg SendReminders) error {
	now := msg.Now
	if now.IsZero() {
		now = c.now()
	}
	res, err := c.svc.Run(ctx, now)
	if err != nil {
		c.logger.Error("send reminders command failed", logger.Err(err))
		return err
	}
	c.logger.Debug("send reminders command", logger.Field{Key: "delivered", Value: res.Delivered})
	if msg.Result != nil {
		*msg.Result = res
	}
	return nil
}
