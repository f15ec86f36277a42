package di

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-access-vault/internal/credentials"
	"github.com/goliatone/go-access-vault/internal/dispatcher"
	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/notify"
	"github.com/goliatone/go-access-vault/pkg/keys"
	"github.com/goliatone/go-access-vault/pkg/secrets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func baseOptions() Options {
	return Options{
		Logger:     &logger.Nop{},
		Registerer: prometheus.NewRegistry(),
		Getenv:     noEnv,
		Identity:   identity.NewStatic(),
	}
}

func input(name string) credentials.Input {
	return credentials.Input{
		Name:         name,
		AccessType:   domain.AccessUserPassword,
		Criticality:  domain.CriticalityLow,
		BusinessUnit: domain.BusinessUnitPlatform,
		Environment:  domain.EnvironmentStaging,
		Privacy:      domain.PrivacyPrivate,
		RotationDays: 90,
		Owners:       []string{"alice"},
	}
}

func TestNewWiresDefaultsEndToEnd(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, baseOptions())
	require.NoError(t, err)

	require.Equal(t, "memory", c.Config.Storage.Driver)
	require.Equal(t, keys.SourceGenerated, c.KeySource)
	require.NoError(t, c.Engine.Err())
	require.IsType(t, &dispatcher.Service{}, c.Notifier)
	require.Len(t, c.Adapters.All(), 1)
	require.NotNil(t, c.Commands)

	stored, ok, err := c.Storage.Params.Get(ctx, c.Config.Crypto.ParamKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, keys.Validate(stored))

	cred, err := c.Credentials.Create(ctx, "alice", input("crm"))
	require.NoError(t, err)
	sec, err := c.Credentials.AddSecret(ctx, "alice", cred.ID, credentials.SecretInput{Name: "admin"})
	require.NoError(t, err)
	_, err = c.Credentials.SetSecret(ctx, "alice", sec.ID, "hunter2")
	require.NoError(t, err)

	plain, err := c.Credentials.RevealForCopy(ctx, "alice", sec.ID)
	require.NoError(t, err)
	require.Equal(t, "hunter2", plain)
}

func TestNewKeepsRunningWithoutMasterKey(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Crypto.DisableAutoGenerate = true
	opts := baseOptions()
	opts.Config = cfg

	c, err := New(ctx, opts)
	require.NoError(t, err)
	require.ErrorIs(t, c.Engine.Err(), secrets.ErrInvalidKey)

	cred, err := c.Credentials.Create(ctx, "alice", input("billing"))
	require.NoError(t, err)
	sec, err := c.Credentials.AddSecret(ctx, "alice", cred.ID, credentials.SecretInput{Name: "api"})
	require.NoError(t, err)

	_, err = c.Credentials.SetSecret(ctx, "alice", sec.ID, "value")
	require.ErrorIs(t, err, secrets.ErrInvalidKey)
}

func TestNewUsesStaticKeyAndInjectedNotifier(t *testing.T) {
	key, err := keys.Generate()
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Crypto.MasterKey = key
	opts := baseOptions()
	opts.Config = cfg
	rec := &notify.Recorder{}
	opts.Notifier = rec

	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, keys.SourceConfig, c.KeySource)
	require.Nil(t, c.Dispatcher)
	require.Same(t, rec, c.Notifier)
}

func TestNewRejectsDBCounterOnMemoryStorage(t *testing.T) {
	cfg := config.Defaults()
	cfg.RateLimit.Backend = "db"
	opts := baseOptions()
	opts.Config = cfg

	_, err := New(context.Background(), opts)
	require.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "mysql"
	opts := baseOptions()
	opts.Config = cfg

	_, err := New(context.Background(), opts)
	require.Error(t, err)
}

func TestNewRedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Defaults()
	cfg.RateLimit.Backend = "redis"
	cfg.RateLimit.RedisAddr = mr.Addr()
	cfg.RateLimit.Limit = 1
	opts := baseOptions()
	opts.Config = cfg
	opts.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = opts.Redis.Close() })

	c, err := New(context.Background(), opts)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := c.Limiter.Allow(ctx, "alice", "cred")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	res, err = c.Limiter.Allow(ctx, "alice", "cred")
	require.NoError(t, err)
	require.False(t, res.Allowed)

}
