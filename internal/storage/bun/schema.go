package bunrepo

import (
	"context"
	"fmt"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/uptrace/bun"
)

// Models lists every table owned by the vault.
func Models() []any {
	return []any{
		(*domain.Credential)(nil),
		(*domain.Secret)(nil),
		(*domain.Share)(nil),
		(*domain.LogEntry)(nil),
		(*domain.Param)(nil),
		(*domain.RateCounter)(nil),
	}
}

type index struct {
	name    string
	model   any
	columns []string
}

var indexes = []index{
	{"vault_secrets_credential_idx", (*domain.Secret)(nil), []string{"credential_id", "sequence"}},
	{"vault_shares_credential_idx", (*domain.Share)(nil), []string{"credential_id", "grantee"}},
	{"vault_shares_active_expiry_idx", (*domain.Share)(nil), []string{"active", "expires_at"}},
	{"vault_logs_credential_idx", (*domain.LogEntry)(nil), []string{"credential_id", "timestamp"}},
	{"vault_credentials_rotation_idx", (*domain.Credential)(nil), []string{"state", "rotation_days", "last_rotation_at"}},
}

// CreateSchema creates tables and indexes when missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
