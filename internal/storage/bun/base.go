package bunrepo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

type baseRepository[T any] struct {
	repo    repository.Repository[*T]
	db      *bun.DB
	extract func(*T) *domain.RecordMeta
}

func newBaseRepository[T any](db *bun.DB, handlers repository.ModelHandlers[*T], extract func(*T) *domain.RecordMeta) baseRepository[T] {
	return baseRepository[T]{
		repo:    repository.MustNewRepository[*T](db, handlers),
		db:      db,
		extract: extract,
	}
}

// idb returns the transaction carried by ctx, or the database.
func (r baseRepository[T]) idb(ctx context.Context) bun.IDB {
	return idb(ctx, r.db)
}

func (r baseRepository[T]) create(ctx context.Context, record *T) error {
	base := r.extract(record)
	base.EnsureID()
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	if tx, ok := txFromContext(ctx); ok {
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return mapError(err)
	}
	_, err := r.repo.Create(ctx, record)
	return mapError(err)
}

func (r baseRepository[T]) update(ctx context.Context, record *T) error {
	base := r.extract(record)
	base.UpdatedAt = time.Now().UTC()
	if tx, ok := txFromContext(ctx); ok {
		res, err := tx.NewUpdate().Model(record).WherePK().ExcludeColumn("created_at").Exec(ctx)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(res)
	}
	_, err := r.repo.Update(ctx, record)
	return mapError(err)
}

func (r baseRepository[T]) get(ctx context.Context, criteria ...repository.SelectCriteria) (*T, error) {
	if tx, ok := txFromContext(ctx); ok {
		record := new(T)
		q := tx.NewSelect().Model(record)
		for _, c := range criteria {
			q = c(q)
		}
		if err := q.Limit(1).Scan(ctx); err != nil {
			return nil, mapError(err)
		}
		return record, nil
	}
	record, err := r.repo.Get(ctx, criteria...)
	if err != nil {
		return nil, mapError(err)
	}
	return record, nil
}

func (r baseRepository[T]) getByID(ctx context.Context, id uuid.UUID) (*T, error) {
	return r.get(ctx, withID(id))
}

func (r baseRepository[T]) find(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	if tx, ok := txFromContext(ctx); ok {
		var records []T
		q := tx.NewSelect().Model(&records)
		for _, c := range criteria {
			q = c(q)
		}
		total, err := q.ScanAndCount(ctx)
		if err != nil {
			return nil, 0, mapError(err)
		}
		return records, total, nil
	}
	records, total, err := r.repo.List(ctx, criteria...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	items := make([]T, len(records))
	for i, rec := range records {
		items[i] = *rec
	}
	return items, total, nil
}

func (r baseRepository[T]) list(ctx context.Context, opts store.ListOptions, criteria ...repository.SelectCriteria) (store.ListResult[T], error) {
	criteria = append(criteria, withListOptions(opts))
	items, total, err := r.find(ctx, criteria...)
	if err != nil {
		return store.ListResult[T]{}, err
	}
	return store.ListResult[T]{Items: items, Total: total}, nil
}

func (r baseRepository[T]) delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.idb(ctx).NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func (r baseRepository[T]) deleteByCredential(ctx context.Context, credentialID uuid.UUID) error {
	_, err := r.idb(ctx).NewDelete().Model((*T)(nil)).Where("credential_id = ?", credentialID).Exec(ctx)
	return mapError(err)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return errors.Join(store.ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
