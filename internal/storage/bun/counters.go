package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/uptrace/bun"
)

// RateCounterStore keeps rate-limit buckets in SQL. Increments are a single
// upsert statement, so concurrent writers never lose a count.
type RateCounterStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewRateCounterStore(db *bun.DB, now func() time.Time) *RateCounterStore {
	if now == nil {
		now = time.Now
	}
	return &RateCounterStore{db: db, now: now}
}

func (s *RateCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now().UTC()
	if _, err := s.db.NewDelete().
		Model((*domain.RateCounter)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx); err != nil {
		return 0, err
	}

	var hits int64
	err := s.db.NewRaw(
		`INSERT INTO vault_rate_counters (bucket_key, hits, expires_at) VALUES (?, 1, ?)
		ON CONFLICT (bucket_key) DO UPDATE SET hits = vault_rate_counters.hits + 1
		RETURNING hits`,
		key, now.Add(ttl),
	).Scan(ctx, &hits)
	if err != nil {
		return 0, err
	}
	return hits, nil
}

func (s *RateCounterStore) Get(ctx context.Context, key string) (int64, error) {
	var row domain.RateCounter
	err := s.db.NewSelect().
		Model(&row).
		Where("bucket_key = ?", key).
		Where("expires_at > ?", s.now().UTC()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return row.Count, nil
}

func (s *RateCounterStore) Decr(ctx context.Context, key string) error {
	_, err := s.db.NewUpdate().
		Model((*domain.RateCounter)(nil)).
		Set("hits = hits - 1").
		Where("bucket_key = ?", key).
		Where("hits > 0").
		Exec(ctx)
	return err
}

func (s *RateCounterStore) Mark(ctx context.Context, key string, value int64, ttl time.Duration) error {
	_, err := s.db.NewRaw(
		`INSERT INTO vault_rate_counters (bucket_key, hits, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (bucket_key) DO UPDATE SET
			hits = CASE WHEN excluded.hits > vault_rate_counters.hits THEN excluded.hits ELSE vault_rate_counters.hits END,
			expires_at = excluded.expires_at`,
		key, value, s.now().UTC().Add(ttl),
	).Exec(ctx)
	return err
}

func isNotFound(err error) bool {
	return mapError(err) == store.ErrNotFound
}
