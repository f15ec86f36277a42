package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
)

type recordingMetrics struct{ ops []string }

func (r *recordingMetrics) Record(operation string, _ map[string]string) {
	r.ops = append(r.ops, operation)
}

func TestBuildMemoryProviders(t *testing.T) {
	m := &recordingMetrics{}
	providers, closeFn, err := Build(context.Background(), config.StorageConfig{Driver: "memory"}, nil, WithMetricsCollector(m))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer closeFn()

	if providers.Credentials == nil || providers.Secrets == nil || providers.Shares == nil || providers.Logs == nil {
		t.Fatalf("expected every repository to be wired: %+v", providers)
	}
	if providers.Counters != nil {
		t.Fatalf("memory providers leave the counter choice to the caller")
	}
	if providers.Metrics != m {
		t.Fatalf("expected metrics option to apply")
	}
	if _, ok := providers.Transaction.(*store.NopTransactionManager); !ok {
		t.Fatalf("expected nop transaction manager, got %T", providers.Transaction)
	}
}

func TestBuildSQLiteProviders(t *testing.T) {
	ctx := context.Background()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	providers, closeFn, err := Build(ctx, config.StorageConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer closeFn()

	cred := &domain.Credential{
		Name:         "sqlite-check",
		AccessType:   domain.AccessToken,
		Criticality:  domain.CriticalityLow,
		BusinessUnit: domain.BusinessUnitQATrust,
		Environment:  domain.EnvironmentDevelopment,
		Privacy:      domain.PrivacyPublic,
		State:        domain.StateActive,
		Owners:       domain.StringList{"alice"},
	}
	err = providers.Transaction.WithinTransaction(ctx, func(ctx context.Context) error {
		return providers.Credentials.Create(ctx, cred)
	})
	if err != nil {
		t.Fatalf("create in tx: %v", err)
	}
	got, err := providers.Credentials.GetByID(ctx, cred.ID)
	if err != nil || got.Name != "sqlite-check" {
		t.Fatalf("expected committed row, got %+v %v", got, err)
	}

	if err := providers.Params.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("params set: %v", err)
	}
	if v, ok, err := providers.Params.Get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("params get: %q %v %v", v, ok, err)
	}
	if providers.Counters == nil {
		t.Fatalf("sql providers should expose the counter table")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "oracle"}, nil)
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected unsupported driver, got %v", err)
	}
	if _, err := Open(context.Background(), config.StorageConfig{Driver: "postgres"}, nil); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestEnsureSQLiteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if err := ensureSQLiteDir("file:" + filepath.Join(dir, "vault.db") + "?cache=shared"); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist: %v", err)
	}
	if err := ensureSQLiteDir("file::memory:"); err != nil {
		t.Fatalf("memory dsn: %v", err)
	}
}

func buildBackends(t *testing.T) map[string]Providers {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	sqlite, closeFn, err := Build(ctx, config.StorageConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, nil)
	if err != nil {
		t.Fatalf("build sqlite: %v", err)
	}
	t.Cleanup(func() { _ = closeFn() })
	return map[string]Providers{
		"memory": NewMemoryProviders(),
		"sqlite": sqlite,
	}
}

func TestCredentialNamesMatchExactlyOnEveryBackend(t *testing.T) {
	for backend, providers := range buildBackends(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			repo := providers.Credentials
			create := func(name string, env domain.Environment) error {
				return repo.Create(ctx, &domain.Credential{
					Name:         name,
					AccessType:   domain.AccessToken,
					Criticality:  domain.CriticalityLow,
					BusinessUnit: domain.BusinessUnitQATrust,
					Environment:  env,
					Privacy:      domain.PrivacyPrivate,
					State:        domain.StateActive,
					Owners:       domain.StringList{"alice"},
				})
			}

			if err := create("Prod DB", domain.EnvironmentProduction); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := create("prod db", domain.EnvironmentProduction); err != nil {
				t.Fatalf("names differing in case are distinct: %v", err)
			}
			if err := create("Prod DB", domain.EnvironmentStaging); err != nil {
				t.Fatalf("same name in another environment: %v", err)
			}
			if err := create("Prod DB", domain.EnvironmentProduction); !errors.Is(err, store.ErrDuplicate) {
				t.Fatalf("expected duplicate, got %v", err)
			}

			got, err := repo.GetByName(ctx, domain.EnvironmentProduction, "prod db")
			if err != nil || got.Name != "prod db" {
				t.Fatalf("exact lookup: %+v %v", got, err)
			}
			if _, err := repo.GetByName(ctx, domain.EnvironmentProduction, "PROD DB"); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestCredentialCursorWalksDisplayOrderOnEveryBackend(t *testing.T) {
	seed := []struct {
		name string
		env  domain.Environment
		crit domain.Criticality
	}{
		{"zeta", domain.EnvironmentProduction, domain.CriticalityCritical},
		{"alpha", domain.EnvironmentProduction, domain.CriticalityLow},
		{"beta", domain.EnvironmentProduction, domain.CriticalityLow},
		{"gamma", domain.EnvironmentStaging, domain.CriticalityHigh},
		{"delta", domain.EnvironmentDevelopment, domain.CriticalityMedium},
	}
	want := []string{"delta", "zeta", "alpha", "beta", "gamma"}

	for backend, providers := range buildBackends(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			repo := providers.Credentials
			for _, s := range seed {
				err := repo.Create(ctx, &domain.Credential{
					Name:         s.name,
					AccessType:   domain.AccessToken,
					Criticality:  s.crit,
					BusinessUnit: domain.BusinessUnitQATrust,
					Environment:  s.env,
					Privacy:      domain.PrivacyPrivate,
					State:        domain.StateActive,
					Owners:       domain.StringList{"alice"},
				})
				if err != nil {
					t.Fatalf("create %s: %v", s.name, err)
				}
			}

			var (
				got   []string
				after *store.CredentialCursor
			)
			for range len(seed) + 1 {
				page, err := repo.Find(ctx, store.CredentialFilter{Ordered: true, After: after}, store.ListOptions{Limit: 2})
				if err != nil {
					t.Fatalf("find: %v", err)
				}
				if len(page.Items) == 0 {
					break
				}
				for _, c := range page.Items {
					got = append(got, c.Name)
				}
				after = store.CursorAt(&page.Items[len(page.Items)-1])
			}
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Fatalf("expected %v, got %v", want, got)
			}
		})
	}
}
