package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/keys"
	"github.com/goliatone/go-access-vault/pkg/storage"
	"github.com/goliatone/go-access-vault/pkg/vault"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeygenPrintsValidKey(t *testing.T) {
	out, err := run(t, "keygen")
	require.NoError(t, err)
	require.True(t, keys.Validate(strings.TrimSpace(out)))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, "vaultctl dev\n", out)
}

func TestDashboardRequiresActor(t *testing.T) {
	_, err := run(t, "dashboard")
	require.ErrorContains(t, err, "--actor")
}

func TestParseAt(t *testing.T) {
	zero, err := parseAt(" ")
	require.NoError(t, err)
	require.True(t, zero.IsZero())

	_, err = parseAt("tomorrow")
	require.Error(t, err)

	at, err := parseAt("2025-04-09T10:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 2025, at.Year())
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"ops", "sec", "db"}, splitList([]string{"ops, sec", "", " db "}))
}

func TestSQLiteLifecycle(t *testing.T) {
	dir := t.TempDir()
	dsn := fmt.Sprintf("file:%s?cache=shared", filepath.Join(dir, "vault.db"))
	cfgPath := filepath.Join(dir, "vault.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
[storage]
driver = "sqlite"
dsn = %q

[logging]
level = "error"
`, dsn)), 0o600))

	key, err := keys.Generate()
	require.NoError(t, err)
	t.Setenv(keys.EnvVar, key)

	out, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "migrated sqlite storage")

	setAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	seed(t, dsn, setAt)

	out, err = run(t, "--config", cfgPath, "send-reminders", "--at", setAt.AddDate(0, 0, 30).Format(time.RFC3339))
	require.NoError(t, err)
	var reminded vault.ReminderResult
	require.NoError(t, json.Unmarshal([]byte(out), &reminded))
	require.Equal(t, 1, reminded.Scanned)
	require.Equal(t, 1, reminded.Due)

	out, err = run(t, "--config", cfgPath, "sweep-shares")
	require.NoError(t, err)
	var swept vault.SweepResult
	require.NoError(t, json.Unmarshal([]byte(out), &swept))
	require.Zero(t, swept.Expired)

	out, err = run(t, "--config", cfgPath, "dashboard", "--actor", "alice")
	require.NoError(t, err)
	var dash vault.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &dash))
	require.Equal(t, 1, dash.Total)

	out, err = run(t, "--config", cfgPath, "dashboard", "--actor", "mallory")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &dash))
	require.Zero(t, dash.Total)
}

func seed(t *testing.T, dsn string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Storage = config.StorageConfig{Driver: storage.DriverSQLite, DSN: dsn}
	cfg.Notifications.Enabled = false

	providers, closeFn, err := storage.Build(ctx, cfg.Storage, &logger.Nop{})
	require.NoError(t, err)
	defer closeFn()

	module, err := vault.NewModule(ctx, vault.ModuleOptions{
		Config:  cfg,
		Storage: providers,
		Logger:  &logger.Nop{},
		Clock:   func() time.Time { return at },
	})
	require.NoError(t, err)

	cred, err := module.Credentials().Create(ctx, "alice", vault.CredentialInput{
		Name:         "ledger",
		AccessType:   domain.AccessUserPassword,
		Criticality:  domain.CriticalityCritical,
		BusinessUnit: domain.BusinessUnitManagement,
		Environment:  domain.EnvironmentProduction,
		Privacy:      domain.PrivacyPrivate,
		RotationDays: 30,
		Owners:       []string{"alice"},
	})
	require.NoError(t, err)
	sec, err := module.Credentials().AddSecret(ctx, "alice", cred.ID, vault.SecretInput{Name: "root"})
	require.NoError(t, err)
	_, err = module.Credentials().SetSecret(ctx, "alice", sec.ID, "p@ss")
	require.NoError(t, err)
}
