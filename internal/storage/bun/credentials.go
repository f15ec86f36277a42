package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CredentialRepository struct {
	base baseRepository[domain.Credential]
}

var _ store.CredentialRepository = (*CredentialRepository)(nil)

func NewCredentialRepository(db *bun.DB) *CredentialRepository {
	handlers := repository.ModelHandlers[*domain.Credential]{
		NewRecord: func() *domain.Credential { return &domain.Credential{} },
		GetID:     func(c *domain.Credential) uuid.UUID { return c.ID },
		SetID: func(c *domain.Credential, id uuid.UUID) {
			c.ID = id
		},
		GetIdentifier:      func() string { return "name" },
		GetIdentifierValue: func(c *domain.Credential) string { return c.Name },
	}
	return &CredentialRepository{
		base: newBaseRepository[domain.Credential](db, handlers, func(c *domain.Credential) *domain.RecordMeta { return &c.RecordMeta }),
	}
}

func (r *CredentialRepository) Create(ctx context.Context, record *domain.Credential) error {
	if record.Version == 0 {
		record.Version = 1
	}
	return r.base.create(ctx, record)
}

// Update writes every column when the stored version matches record.Version.
func (r *CredentialRepository) Update(ctx context.Context, record *domain.Credential) error {
	expected := record.Version
	prevUpdated := record.UpdatedAt
	record.Version = expected + 1
	record.UpdatedAt = time.Now().UTC()

	res, err := r.base.idb(ctx).NewUpdate().
		Model(record).
		ExcludeColumn("id", "created_at").
		Where("id = ?", record.ID).
		Where("version = ?", expected).
		Exec(ctx)
	if err == nil {
		err = requireAffected(res)
	}
	if err == nil {
		return nil
	}

	record.Version = expected
	record.UpdatedAt = prevUpdated
	if err != store.ErrNotFound {
		return mapError(err)
	}
	if _, getErr := r.base.getByID(ctx, record.ID); getErr != nil {
		return getErr
	}
	return store.ErrConflict
}

func (r *CredentialRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	return r.base.getByID(ctx, id)
}

func (r *CredentialRepository) GetByName(ctx context.Context, env domain.Environment, name string) (*domain.Credential, error) {
	return r.base.get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("environment = ?", env).Where("name = ?", name)
	})
}

func (r *CredentialRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Credential], error) {
	return r.base.list(ctx, opts)
}

func (r *CredentialRepository) Find(ctx context.Context, filter store.CredentialFilter, opts store.ListOptions) (store.ListResult[domain.Credential], error) {
	return r.base.list(ctx, opts, withCredentialFilter(filter))
}

func (r *CredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.delete(ctx, id)
}
