package bunrepo

import (
	"context"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SecretRepository struct {
	base baseRepository[domain.Secret]
}

var _ store.SecretRepository = (*SecretRepository)(nil)

func NewSecretRepository(db *bun.DB) *SecretRepository {
	handlers := repository.ModelHandlers[*domain.Secret]{
		NewRecord: func() *domain.Secret { return &domain.Secret{} },
		GetID:     func(s *domain.Secret) uuid.UUID { return s.ID },
		SetID: func(s *domain.Secret, id uuid.UUID) {
			s.ID = id
		},
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(s *domain.Secret) string { return s.ID.String() },
	}
	return &SecretRepository{
		base: newBaseRepository[domain.Secret](db, handlers, func(s *domain.Secret) *domain.RecordMeta { return &s.RecordMeta }),
	}
}

func (r *SecretRepository) Create(ctx context.Context, record *domain.Secret) error {
	return r.base.create(ctx, record)
}

func (r *SecretRepository) Update(ctx context.Context, record *domain.Secret) error {
	return r.base.update(ctx, record)
}

func (r *SecretRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	return r.base.getByID(ctx, id)
}

func (r *SecretRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Secret], error) {
	return r.base.list(ctx, opts)
}

func (r *SecretRepository) ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]domain.Secret, error) {
	items, _, err := r.base.find(ctx, withCredential(credentialID), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("sequence ASC", "created_at ASC")
	})
	return items, err
}

func (r *SecretRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.delete(ctx, id)
}

func (r *SecretRepository) DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error {
	return r.base.deleteByCredential(ctx, credentialID)
}
