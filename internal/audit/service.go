package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-access-vault/pkg/activity"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

// Entry is the input for a single audit record.
type Entry struct {
	CredentialID uuid.UUID
	Actor        string
	Action       domain.Action
	Detail       string
	// ObjectType and ObjectID describe the touched record for activity
	// consumers; they default to the credential.
	ObjectType string
	ObjectID   string
	Metadata   map[string]any
}

// Dependencies wires the log repository and activity hooks into the service.
type Dependencies struct {
	Repository store.LogRepository
	Logger     logger.Logger
	Activity   activity.Hooks
	Clock      func() time.Time
}

// Service appends and lists audit log entries.
type Service struct {
	repo     store.LogRepository
	logger   logger.Logger
	activity activity.Hooks
	now      func() time.Time
}

var (
	errRepositoryRequired = errors.New("audit: repository is required")
	ErrInvalidEntry       = errors.New("audit: credential, actor and a known action are required")
)

// NewService constructs the audit service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Repository == nil {
		return nil, errRepositoryRequired
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		repo:     deps.Repository,
		logger:   deps.Logger,
		activity: deps.Activity,
		now:      deps.Clock,
	}, nil
}

// Record appends one entry and fans it out to activity hooks. A failed append
// is logged and returned; callers decide whether it matters.
func (s *Service) Record(ctx context.Context, e Entry) (*domain.LogEntry, error) {
	if e.CredentialID == uuid.Nil || e.Actor == "" || !e.Action.Valid() {
		return nil, ErrInvalidEntry
	}
	entry := &domain.LogEntry{
		CredentialID: e.CredentialID,
		Actor:        e.Actor,
		Action:       e.Action,
		Timestamp:    s.now().UTC(),
		Detail:       e.Detail,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed",
			logger.Field{Key: "credential_id", Value: e.CredentialID.String()},
			logger.Field{Key: "action", Value: string(e.Action)},
			logger.Err(err),
		)
		return nil, fmt.Errorf("audit: append: %w", err)
	}

	objectType, objectID := e.ObjectType, e.ObjectID
	if objectType == "" {
		objectType = "credential"
		objectID = e.CredentialID.String()
	}
	s.activity.Notify(ctx, activity.Event{
		Verb:         "vault." + string(e.Action),
		ActorID:      e.Actor,
		ObjectType:   objectType,
		ObjectID:     objectID,
		CredentialID: e.CredentialID.String(),
		Detail:       e.Detail,
		Metadata:     activity.CloneMetadata(e.Metadata),
		OccurredAt:   entry.Timestamp,
	})
	return entry, nil
}

// List returns entries for a credential, newest first.
func (s *Service) List(ctx context.Context, credentialID uuid.UUID, opts store.ListOptions) (store.ListResult[domain.LogEntry], error) {
	return s.repo.ListByCredential(ctx, credentialID, opts)
}

// Purge removes every entry of a deleted credential.
func (s *Service) Purge(ctx context.Context, credentialID uuid.UUID) error {
	return s.repo.DeleteByCredential(ctx, credentialID)
}
