package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bunrepo "github.com/goliatone/go-access-vault/internal/storage/bun"
	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "file:access_vault.db?cache=shared"
)

// ErrUnsupportedDriver is returned for unknown storage drivers.
var ErrUnsupportedDriver = errors.New("storage: unsupported driver")

// Open connects to the SQL backend named by cfg.Driver. Memory is not a SQL
// backend; use Build for driver-agnostic wiring.
func Open(ctx context.Context, cfg config.StorageConfig, lgr logger.Logger) (*bun.DB, error) {
	if lgr == nil {
		lgr = &logger.Nop{}
	}
	var (
		db  *bun.DB
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite:
		db, err = openSQLite(ctx, cfg.DSN, lgr)
	case DriverPostgres:
		db, err = openPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", cfg.Driver, err)
	}
	if cfg.Debug {
		db.AddQueryHook(&queryLogger{logger: lgr})
	}
	return db, nil
}

// Migrate creates the vault tables and indexes when missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	return bunrepo.CreateSchema(ctx, db)
}

// Build returns providers for cfg.Driver together with a close function. SQL
// backends are migrated before the providers are returned.
func Build(ctx context.Context, cfg config.StorageConfig, lgr logger.Logger, opts ...Option) (Providers, func() error, error) {
	if cfg.Driver == "" || strings.EqualFold(cfg.Driver, DriverMemory) {
		return NewMemoryProviders(opts...), func() error { return nil }, nil
	}
	db, err := Open(ctx, cfg, lgr)
	if err != nil {
		return Providers{}, nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return Providers{}, nil, err
	}
	return NewBunProviders(db, opts...), db.Close, nil
}

func openSQLite(ctx context.Context, dsn string, lgr logger.Logger) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = defaultSQLiteDSN
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	sqldb, err := sql.Open(sqliteshim.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		lgr.Warn("storage: enable sqlite foreign keys", logger.Err(err))
	}
	return db, nil
}

func openPostgres(dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("storage: postgres dsn is required")
	}
	pgcfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse postgres dsn: %w", err)
	}
	sqldb := stdlib.OpenDB(*pgcfg)
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func ensureSQLiteDir(dsn string) error {
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// queryLogger logs statements at debug level. Query text may include bound
// values, so it is only installed when storage debugging is enabled.
type queryLogger struct {
	logger logger.Logger
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	fields := []logger.Field{
		{Key: "operation", Value: event.Operation()},
		{Key: "duration", Value: time.Since(event.StartTime).String()},
	}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		fields = append(fields, logger.Err(event.Err))
	}
	h.logger.Debug(event.Query, fields...)
}
