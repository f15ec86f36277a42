package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LogRepository appends audit entries. It bypasses the generic repository
// because entries use an autoincrement key.
type LogRepository struct {
	db *bun.DB
}

var _ store.LogRepository = (*LogRepository)(nil)

func NewLogRepository(db *bun.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Append(ctx context.Context, entry *domain.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := idb(ctx, r.db).NewInsert().Model(entry).Returning("id").Exec(ctx)
	return mapError(err)
}

func (r *LogRepository) ListByCredential(ctx context.Context, credentialID uuid.UUID, opts store.ListOptions) (store.ListResult[domain.LogEntry], error) {
	var entries []domain.LogEntry
	q := idb(ctx, r.db).NewSelect().Model(&entries).Where("credential_id = ?", credentialID)
	q = withTimeRange("timestamp", opts.Since, opts.Until)(q)
	q = withPage(opts)(q)
	total, err := q.Order("timestamp DESC", "id DESC").ScanAndCount(ctx)
	if err != nil {
		return store.ListResult[domain.LogEntry]{}, mapError(err)
	}
	return store.ListResult[domain.LogEntry]{Items: entries, Total: total}, nil
}

func (r *LogRepository) DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error {
	_, err := idb(ctx, r.db).NewDelete().Model((*domain.LogEntry)(nil)).Where("credential_id = ?", credentialID).Exec(ctx)
	return mapError(err)
}
