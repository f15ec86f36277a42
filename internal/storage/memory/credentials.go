package memory

import (
	"context"
	"fmt"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

type CredentialRepository struct {
	baseMemoryRepo[domain.Credential]
}

var _ store.CredentialRepository = (*CredentialRepository)(nil)

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		baseMemoryRepo: newBaseMemoryRepo[domain.Credential]("credential",
			func(c *domain.Credential) *domain.RecordMeta { return &c.RecordMeta },
			func(c domain.Credential) domain.Credential { return c.Clone() },
		),
	}
}

func (r *CredentialRepository) Create(ctx context.Context, record *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTakenLocked(record.Environment, record.Name, record.ID) {
		return fmt.Errorf("credential %s/%s: %w", record.Environment, record.Name, store.ErrDuplicate)
	}
	if record.Version == 0 {
		record.Version = 1
	}
	return r.createLocked(record)
}

// Update applies the optimistic version check under the write lock.
func (r *CredentialRepository) Update(ctx context.Context, record *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[record.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Version != record.Version {
		return store.ErrConflict
	}
	if r.nameTakenLocked(record.Environment, record.Name, record.ID) {
		return fmt.Errorf("credential %s/%s: %w", record.Environment, record.Name, store.ErrDuplicate)
	}
	record.Version++
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = nowUTC()
	r.records[record.ID] = record.Clone()
	return nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	return r.getByID(ctx, id)
}

func (r *CredentialRepository) GetByName(ctx context.Context, env domain.Environment, name string) (*domain.Credential, error) {
	items := r.filter(func(c *domain.Credential) bool {
		return c.Environment == env && c.Name == name
	}, nil)
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return &items[0], nil
}

func (r *CredentialRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Credential], error) {
	return r.list(ctx, opts, nil, nil)
}

func (r *CredentialRepository) Find(ctx context.Context, filter store.CredentialFilter, opts store.ListOptions) (store.ListResult[domain.Credential], error) {
	var less func(a, b *domain.Credential) bool
	if filter.Ordered || filter.After != nil {
		less = credentialDisplayOrder
	}
	return r.list(ctx, opts, func(c *domain.Credential) bool {
		return matchCredential(c, filter)
	}, less)
}

func (r *CredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, id)
}

func (r *CredentialRepository) nameTakenLocked(env domain.Environment, name string, self uuid.UUID) bool {
	for id, c := range r.records {
		if id != self && c.Environment == env && c.Name == name {
			return true
		}
	}
	return false
}

func matchCredential(c *domain.Credential, f store.CredentialFilter) bool {
	if f.Environment != "" && c.Environment != f.Environment {
		return false
	}
	if f.State != "" && c.State != f.State {
		return false
	}
	if f.SecretSet && !c.SecretSet {
		return false
	}
	if !f.RotationDueAt.IsZero() && !c.RotationDueAt(f.RotationDueAt) {
		return false
	}
	if cur := f.After; cur != nil {
		mark := domain.Credential{Environment: cur.Environment, Criticality: cur.Criticality, Name: cur.Name}
		mark.ID = cur.ID
		return credentialDisplayOrder(&mark, c)
	}
	return true
}

func credentialDisplayOrder(a, b *domain.Credential) bool {
	if a.Environment != b.Environment {
		return a.Environment < b.Environment
	}
	if ra, rb := a.Criticality.Rank(), b.Criticality.Rank(); ra != rb {
		return ra > rb
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID.String() < b.ID.String()
}
