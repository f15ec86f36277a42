package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/params"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/uptrace/bun"
)

// ParamStore persists parameters in the vault_params table.
type ParamStore struct {
	db *bun.DB
}

var _ params.Store = (*ParamStore)(nil)

func NewParamStore(db *bun.DB) *ParamStore {
	return &ParamStore{db: db}
}

func (s *ParamStore) Get(ctx context.Context, key string) (string, bool, error) {
	var p domain.Param
	err := idb(ctx, s.db).NewSelect().Model(&p).Where("param_key = ?", key).Limit(1).Scan(ctx)
	if err != nil {
		if mapError(err) == store.ErrNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return p.Value, true, nil
}

func (s *ParamStore) Set(ctx context.Context, key, value string) error {
	p := &domain.Param{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := idb(ctx, s.db).NewInsert().
		Model(p).
		On("CONFLICT (param_key) DO UPDATE").
		Set("param_value = EXCLUDED.param_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
