package bunrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.DriverName(), fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	if err := CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newCredential(name string) *domain.Credential {
	return &domain.Credential{
		Name:          name,
		AccessType:    domain.AccessUserPassword,
		Criticality:   domain.CriticalityMedium,
		BusinessUnit:  domain.BusinessUnitPlatform,
		Environment:   domain.EnvironmentProduction,
		Privacy:       domain.PrivacyPrivate,
		State:         domain.StateActive,
		Owners:        domain.StringList{"alice"},
		AllowedGroups: domain.StringList{"devs"},
	}
}

func TestCredentialRepositoryBun(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCredentialRepository(db)
	ctx := context.Background()

	cred := newCredential("billing-db")
	if err := repo.Create(ctx, cred); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByName(ctx, domain.EnvironmentProduction, "billing-db")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if _, err := repo.GetByName(ctx, domain.EnvironmentProduction, "Billing-DB"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("names match exactly, got %v", err)
	}
	if got.ID != cred.ID || !got.AllowedGroups.Contains("devs") || got.Version != 1 {
		t.Fatalf("unexpected record %+v", got)
	}

	stale, _ := repo.GetByID(ctx, cred.ID)
	got.Description = "rotated quarterly"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected version bump, got %d", got.Version)
	}
	stale.Description = "lost"
	if err := repo.Update(ctx, stale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if stale.Version != 1 {
		t.Fatalf("failed update must not bump the in-memory version")
	}

	missing := newCredential("ghost")
	missing.ID = uuid.New()
	missing.Version = 1
	if err := repo.Update(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := repo.Create(ctx, newCredential("billing-db")); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestCredentialRotationDueQuery(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCredentialRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	due := newCredential("due")
	due.RotationDays = 30
	due.LastRotationAt = now.AddDate(0, 0, -31)
	never := newCredential("never")
	never.RotationDays = 15
	fresh := newCredential("fresh")
	fresh.RotationDays = 30
	fresh.LastRotationAt = now.AddDate(0, 0, -1)
	revoked := newCredential("revoked")
	revoked.RotationDays = 7
	revoked.State = domain.StateRevoked
	plain := newCredential("plain")

	all := []*domain.Credential{due, never, fresh, revoked, plain}
	for _, c := range all {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.Name, err)
		}
	}

	res, err := repo.Find(ctx, store.CredentialFilter{RotationDueAt: now}, store.ListOptions{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got := map[string]bool{}
	for _, c := range res.Items {
		got[c.Name] = true
	}
	for _, c := range all {
		if got[c.Name] != c.RotationDueAt(now) {
			t.Fatalf("%s: query says %v, field predicate says %v", c.Name, got[c.Name], c.RotationDueAt(now))
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected two due credentials, got %v", got)
	}
}

func TestShareRepositoryBun(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewShareRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	credID := uuid.New()

	live := &domain.Share{CredentialID: credID, Grantee: "bob", ExpiresAt: now.Add(time.Hour), Active: true, CreatedBy: "alice"}
	old := &domain.Share{CredentialID: credID, Grantee: "carol", ExpiresAt: now.Add(-time.Hour), Active: true, CreatedBy: "alice"}
	for _, s := range []*domain.Share{live, old} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if _, err := repo.FindUsable(ctx, credID, "bob", now); err != nil {
		t.Fatalf("expected usable share: %v", err)
	}
	if _, err := repo.FindUsable(ctx, credID, "carol", now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expired share must not be usable, got %v", err)
	}

	expired, err := repo.ListExpired(ctx, now, 10)
	if err != nil || len(expired) != 1 || expired[0].ID != old.ID {
		t.Fatalf("unexpected expired list %v %v", expired, err)
	}

	changed, err := repo.Deactivate(ctx, old.ID, now, "system")
	if err != nil || !changed {
		t.Fatalf("deactivate: %v %v", changed, err)
	}
	changed, err = repo.Deactivate(ctx, old.ID, now, "system")
	if err != nil || changed {
		t.Fatalf("second deactivate should be a no-op: %v %v", changed, err)
	}
	if _, err := repo.Deactivate(ctx, uuid.New(), now, "system"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown share, got %v", err)
	}

	stored, _ := repo.GetByID(ctx, old.ID)
	if stored.Active || stored.DeactivatedBy != "system" {
		t.Fatalf("expected deactivated history row, got %+v", stored)
	}
}

func TestLogRepositoryBunOrdering(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewLogRepository(db)
	ctx := context.Background()
	credID := uuid.New()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, a := range []domain.Action{domain.ActionCreate, domain.ActionRotate} {
		if err := repo.Append(ctx, &domain.LogEntry{CredentialID: credID, Actor: "alice", Action: a, Timestamp: ts}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = repo.Append(ctx, &domain.LogEntry{CredentialID: credID, Actor: "alice", Action: domain.ActionCopy, Timestamp: ts.Add(time.Minute)})

	res, err := repo.ListByCredential(ctx, credID, store.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 3 || len(res.Items) != 2 {
		t.Fatalf("unexpected page %d/%d", len(res.Items), res.Total)
	}
	if res.Items[0].Action != domain.ActionCopy || res.Items[1].Action != domain.ActionRotate {
		t.Fatalf("expected newest first with id tie-break, got %s, %s", res.Items[0].Action, res.Items[1].Action)
	}
}

func TestTxManagerRollsBack(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCredentialRepository(db)
	tm := NewTxManager(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, newCredential("rolled-back")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := repo.GetByName(ctx, domain.EnvironmentProduction, "rolled-back"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}

	err = tm.WithinTransaction(ctx, func(ctx context.Context) error {
		return repo.Create(ctx, newCredential("committed"))
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := repo.GetByName(ctx, domain.EnvironmentProduction, "committed"); err != nil {
		t.Fatalf("expected committed row: %v", err)
	}
}

func TestParamStoreBun(t *testing.T) {
	db := setupSQLiteDB(t)
	s := NewParamStore(db)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected missing: %v %v", ok, err)
	}
	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, ok, err := s.Get(ctx, "k"); err != nil || !ok || v != "v2" {
		t.Fatalf("unexpected %q %v %v", v, ok, err)
	}
}

func TestRateCounterStoreBun(t *testing.T) {
	db := setupSQLiteDB(t)
	db.SetMaxOpenConns(1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	s := NewRateCounterStore(db, clock)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := s.Incr(ctx, "a", time.Minute)
		if err != nil || n != int64(i) {
			t.Fatalf("incr %d: %d %v", i, n, err)
		}
	}
	if err := s.Decr(ctx, "a"); err != nil {
		t.Fatalf("decr: %v", err)
	}
	if n, _ := s.Get(ctx, "a"); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	if n, _ := s.Get(ctx, "a"); n != 0 {
		t.Fatalf("expired bucket should read as zero, got %d", n)
	}
	if n, _ := s.Incr(ctx, "b", time.Minute); n != 1 {
		t.Fatalf("expected fresh bucket")
	}
	count, err := db.NewSelect().Model((*domain.RateCounter)(nil)).Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected expired buckets to be discarded, got %d %v", count, err)
	}
}

func TestRateCounterStoreBunMarkKeepsMaximum(t *testing.T) {
	db := setupSQLiteDB(t)
	db.SetMaxOpenConns(1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewRateCounterStore(db, func() time.Time { return now })
	ctx := context.Background()

	last := now.UnixNano()
	if err := s.Mark(ctx, "a:last", last, time.Minute); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.Mark(ctx, "a:last", last-int64(time.Second), time.Minute); err != nil {
		t.Fatalf("mark older: %v", err)
	}
	if n, err := s.Get(ctx, "a:last"); err != nil || n != last {
		t.Fatalf("expected %d, got %d %v", last, n, err)
	}
	if err := s.Mark(ctx, "a:last", last+1, time.Minute); err != nil {
		t.Fatalf("mark newer: %v", err)
	}
	if n, _ := s.Get(ctx, "a:last"); n != last+1 {
		t.Fatalf("expected newer mark, got %d", n)
	}
}
