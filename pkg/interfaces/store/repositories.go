package store

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a record cannot be located.
var ErrNotFound = errors.New("store: not found")

// ListOptions capture pagination and filtering knobs common to repositories.
type ListOptions struct {
	Limit  int
	Offset int
	Since  time.Time
	Until  time.Time
}

// ListResult bundles records and totals.
type ListResult[T any] struct {
	Items []T
	Total int
}

// Repository defines base CRUD helpers reused by entity-specific interfaces.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, opts ListOptions) (ListResult[T], error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CredentialFilter narrows credential queries. Zero values are ignored.
type CredentialFilter struct {
	Environment domain.Environment
	State       domain.State
	// SecretSet restricts to credentials holding at least one payload.
	SecretSet bool
	// RotationDueAt selects credentials whose rotation is due at the given
	// instant, using stored fields only.
	RotationDueAt time.Time
	// Ordered sorts by environment, criticality (highest first), name and id
	// instead of creation time.
	Ordered bool
	// After keeps only credentials sorting past the cursor. It implies Ordered.
	After *CredentialCursor
}

// CredentialCursor is the sort key of the last credential on a page.
type CredentialCursor struct {
	Environment domain.Environment
	Criticality domain.Criticality
	Name        string
	ID          uuid.UUID
}

// CursorAt returns the cursor positioned on c.
func CursorAt(c *domain.Credential) *CredentialCursor {
	return &CredentialCursor{
		Environment: c.Environment,
		Criticality: c.Criticality,
		Name:        c.Name,
		ID:          c.ID,
	}
}

type CredentialRepository interface {
	Repository[domain.Credential]
	// Update persists record when the stored version still equals
	// record.Version and increments it. A stale version yields domain.ErrConflict.
	Update(ctx context.Context, record *domain.Credential) error
	GetByName(ctx context.Context, env domain.Environment, name string) (*domain.Credential, error)
	Find(ctx context.Context, filter CredentialFilter, opts ListOptions) (ListResult[domain.Credential], error)
}

type SecretRepository interface {
	Repository[domain.Secret]
	Update(ctx context.Context, record *domain.Secret) error
	ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]domain.Secret, error)
	DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error
}

type ShareRepository interface {
	Repository[domain.Share]
	ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]domain.Share, error)
	// FindUsable returns the active, unexpired share for grantee, if any.
	FindUsable(ctx context.Context, credentialID uuid.UUID, grantee string, now time.Time) (*domain.Share, error)
	// ListExpired returns active shares whose expiry is at or before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Share, error)
	// Deactivate flips an active share to inactive. It reports false when the
	// share was already inactive so callers can stay idempotent.
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time, by string) (bool, error)
	DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error
}

type LogRepository interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
	// ListByCredential returns entries newest first, ties broken by ID.
	ListByCredential(ctx context.Context, credentialID uuid.UUID, opts ListOptions) (ListResult[domain.LogEntry], error)
	DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error
}

var (
	// ErrConflict is returned when a versioned update lost a race.
	ErrConflict = domain.ErrConflict
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("store: duplicate record")
)
