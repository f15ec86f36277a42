package memory

import (
	"context"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

type ShareRepository struct {
	baseMemoryRepo[domain.Share]
}

var _ store.ShareRepository = (*ShareRepository)(nil)

func NewShareRepository() *ShareRepository {
	return &ShareRepository{
		baseMemoryRepo: newBaseMemoryRepo[domain.Share]("share",
			func(s *domain.Share) *domain.RecordMeta { return &s.RecordMeta }, nil),
	}
}

func (r *ShareRepository) Create(ctx context.Context, record *domain.Share) error {
	return r.create(ctx, record)
}

func (r *ShareRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Share, error) {
	return r.getByID(ctx, id)
}

func (r *ShareRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Share], error) {
	return r.list(ctx, opts, nil, nil)
}

func (r *ShareRepository) ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]domain.Share, error) {
	return r.filter(func(s *domain.Share) bool {
		return s.CredentialID == credentialID
	}, func(a, b *domain.Share) bool {
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.After(b.ExpiresAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func (r *ShareRepository) FindUsable(ctx context.Context, credentialID uuid.UUID, grantee string, now time.Time) (*domain.Share, error) {
	items := r.filter(func(s *domain.Share) bool {
		return s.CredentialID == credentialID && s.Grantee == grantee && s.Usable(now)
	}, nil)
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return &items[0], nil
}

func (r *ShareRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Share, error) {
	items := r.filter(func(s *domain.Share) bool {
		return s.Active && !s.ExpiresAt.After(now)
	}, func(a, b *domain.Share) bool {
		return a.ExpiresAt.Before(b.ExpiresAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Deactivate is a compare-and-set on the active flag.
func (r *ShareRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time, by string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	share, ok := r.records[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !share.Active {
		return false, nil
	}
	share.Active = false
	share.DeactivatedAt = at
	share.DeactivatedBy = by
	share.UpdatedAt = nowUTC()
	r.records[id] = share
	return true, nil
}

func (r *ShareRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, id)
}

func (r *ShareRepository) DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error {
	r.deleteWhere(func(s *domain.Share) bool { return s.CredentialID == credentialID })
	return nil
}
