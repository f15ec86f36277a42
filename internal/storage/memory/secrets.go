package memory

import (
	"context"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

type SecretRepository struct {
	baseMemoryRepo[domain.Secret]
}

var _ store.SecretRepository = (*SecretRepository)(nil)

func NewSecretRepository() *SecretRepository {
	return &SecretRepository{
		baseMemoryRepo: newBaseMemoryRepo[domain.Secret]("secret",
			func(s *domain.Secret) *domain.RecordMeta { return &s.RecordMeta }, nil),
	}
}

func (r *SecretRepository) Create(ctx context.Context, record *domain.Secret) error {
	return r.create(ctx, record)
}

func (r *SecretRepository) Update(ctx context.Context, record *domain.Secret) error {
	return r.update(ctx, record)
}

func (r *SecretRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	return r.getByID(ctx, id)
}

func (r *SecretRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Secret], error) {
	return r.list(ctx, opts, nil, nil)
}

func (r *SecretRepository) ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]domain.Secret, error) {
	return r.filter(func(s *domain.Secret) bool {
		return s.CredentialID == credentialID
	}, func(a, b *domain.Secret) bool {
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (r *SecretRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, id)
}

func (r *SecretRepository) DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error {
	r.deleteWhere(func(s *domain.Secret) bool { return s.CredentialID == credentialID })
	return nil
}
