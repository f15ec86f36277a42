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

type ShareRepository struct {
	base baseRepository[domain.Share]
}

var _ store.ShareRepository = (*ShareRepository)(nil)

func NewShareRepository(db *bun.DB) *ShareRepository {
	handlers := repository.ModelHandlers[*domain.Share]{
		NewRecord: func() *domain.Share { return &domain.Share{} },
		GetID:     func(s *domain.Share) uuid.UUID { return s.ID },
		SetID: func(s *domain.Share, id uuid.UUID) {
			s.ID = id
		},
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(s *domain.Share) string { return s.ID.String() },
	}
	return &ShareRepository{
		base: newBaseRepository[domain.Share](db, handlers, func(s *domain.Share) *domain.RecordMeta { return &s.RecordMeta }),
	}
}

func (r *ShareRepository) Create(ctx context.Context, record *domain.Share) error {
	return r.base.create(ctx, record)
}

func (r *ShareRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Share, error) {
	return r.base.getByID(ctx, id)
}

func (r *ShareRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Share], error) {
	return r.base.list(ctx, opts)
}

func (r *ShareRepository) ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]domain.Share, error) {
	items, _, err := r.base.find(ctx, withCredential(credentialID), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("expires_at DESC", "created_at DESC")
	})
	return items, err
}

func (r *ShareRepository) FindUsable(ctx context.Context, credentialID uuid.UUID, grantee string, now time.Time) (*domain.Share, error) {
	return r.base.get(ctx, withCredential(credentialID), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("grantee = ?", grantee).
			Where("active = ?", true).
			Where("expires_at > ?", now.UTC())
	})
}

func (r *ShareRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Share, error) {
	items, _, err := r.base.find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("active = ?", true).
			Where("expires_at <= ?", now.UTC()).
			Order("expires_at ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	return items, err
}

// Deactivate only touches rows that are still active, so concurrent sweeps
// and revokes flip each share at most once.
func (r *ShareRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time, by string) (bool, error) {
	res, err := r.base.idb(ctx).NewUpdate().
		Model((*domain.Share)(nil)).
		Set("active = ?", false).
		Set("deactivated_at = ?", at.UTC()).
		Set("deactivated_by = ?", by).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("active = ?", true).
		Exec(ctx)
	if err != nil {
		return false, mapError(err)
	}
	if err := requireAffected(res); err == nil {
		return true, nil
	}
	if _, err := r.base.getByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *ShareRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.delete(ctx, id)
}

func (r *ShareRepository) DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error {
	return r.base.deleteByCredential(ctx, credentialID)
}
