package di

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-access-vault/internal/audit"
	"github.com/goliatone/go-access-vault/internal/credentials"
	"github.com/goliatone/go-access-vault/internal/dispatcher"
	"github.com/goliatone/go-access-vault/internal/reminders"
	"github.com/goliatone/go-access-vault/internal/shares"
	"github.com/goliatone/go-access-vault/pkg/activity"
	"github.com/goliatone/go-access-vault/pkg/adapters"
	"github.com/goliatone/go-access-vault/pkg/adapters/aws_ses"
	"github.com/goliatone/go-access-vault/pkg/adapters/console"
	"github.com/goliatone/go-access-vault/pkg/adapters/webhook"
	"github.com/goliatone/go-access-vault/pkg/commands"
	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/metrics"
	"github.com/goliatone/go-access-vault/pkg/interfaces/notify"
	"github.com/goliatone/go-access-vault/pkg/interfaces/params"
	"github.com/goliatone/go-access-vault/pkg/keys"
	"github.com/goliatone/go-access-vault/pkg/keys/awssm"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
	"github.com/goliatone/go-access-vault/pkg/ratelimit"
	"github.com/goliatone/go-access-vault/pkg/secrets"
	"github.com/goliatone/go-access-vault/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Options configure the DI container.
type Options struct {
	Config   config.Config
	Storage  storage.Providers
	Logger   logger.Logger
	Identity identity.Directory
	// Adapters are registered in addition to the configured channels.
	Adapters []adapters.Messenger
	// Notifier replaces the adapter dispatcher entirely.
	Notifier notify.Notifier
	Activity activity.Hooks
	// Params overrides the parameter store used for master key bootstrap.
	Params     params.Store
	Counter    ratelimit.Counter
	Redis      redis.UniversalClient
	Registerer prometheus.Registerer
	Clock      func() time.Time
	Getenv     func(string) string
}

// Container wires repositories, services, dispatcher and commands.
type Container struct {
	Config      config.Config
	Storage     storage.Providers
	Logger      logger.Logger
	Metrics     metrics.Collector
	Adapters    *adapters.Registry
	Dispatcher  *dispatcher.Service
	Notifier    notify.Notifier
	KeySource   keys.Source
	Engine      *secrets.Engine
	Limiter     *ratelimit.Limiter
	Audit       *audit.Service
	Credentials *credentials.Service
	Shares      *shares.Service
	Reminders   *reminders.Service
	Commands    *commands.Registry
}

func isZeroConfig(cfg config.Config) bool {
	return reflect.ValueOf(cfg).IsZero()
}

// New constructs the container using the supplied options. A master key that
// cannot be resolved does not fail construction: the engine rejects every
// call until the key is fixed.
func New(ctx context.Context, opts Options) (*Container, error) {
	cfg := opts.Config
	if isZeroConfig(cfg) {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lgr := opts.Logger
	if lgr == nil {
		lgr = logger.New(os.Stderr, cfg.Logging.Level)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	var collector metrics.Collector = metrics.Nop{}
	if cfg.Metrics.Enabled {
		pc, err := pkgmetrics.New(opts.Registerer, cfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("di: metrics: %w", err)
		}
		collector = pc
	}

	providers := opts.Storage
	if providers.Credentials == nil {
		providers = storage.NewMemoryProviders()
	}
	providers.Metrics = collector

	engine, source := resolveEngine(ctx, cfg.Crypto, opts, providers, lgr)

	counter, err := rateCounter(cfg.RateLimit, opts, providers, clock)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(counter,
		ratelimit.WithLimit(cfg.RateLimit.Limit),
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithPrefix(cfg.RateLimit.Prefix),
		ratelimit.WithClock(clock),
	)
	if err != nil {
		return nil, err
	}

	registry := adapters.NewRegistry(append(channelAdapters(cfg.Notifications, lgr), opts.Adapters...)...)
	var (
		dispatcherSvc *dispatcher.Service
		notifier      = opts.Notifier
	)
	if notifier == nil && cfg.Notifications.Enabled && len(registry.All()) > 0 {
		dispatcherSvc, err = dispatcher.New(dispatcher.Dependencies{
			Registry: registry,
			Logger:   lgr,
			Config:   cfg.Notifications,
			Metrics:  collector,
		})
		if err != nil {
			return nil, err
		}
		notifier = dispatcherSvc
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	auditSvc, err := audit.NewService(audit.Dependencies{
		Repository: providers.Logs,
		Logger:     lgr,
		Activity:   opts.Activity,
		Clock:      clock,
	})
	if err != nil {
		return nil, err
	}

	credSvc, err := credentials.NewService(credentials.Dependencies{
		Credentials: providers.Credentials,
		Secrets:     providers.Secrets,
		Shares:      providers.Shares,
		Audit:       auditSvc,
		Engine:      engine,
		Limiter:     limiter,
		Identity:    opts.Identity,
		Tx:          providers.Transaction,
		Logger:      lgr,
		Metrics:     collector,
		Clock:       clock,
		Location:    cfg.Reminders.Loc(),
	})
	if err != nil {
		return nil, err
	}

	shareSvc, err := shares.NewService(shares.Dependencies{
		Credentials: providers.Credentials,
		Shares:      providers.Shares,
		Audit:       auditSvc,
		Authorizer:  credSvc.Authorizer(),
		Notifier:    notifier,
		Tx:          providers.Transaction,
		Logger:      lgr,
		Metrics:     collector,
		Clock:       clock,
		Config:      cfg.Shares,
		Location:    cfg.Reminders.Loc(),
	})
	if err != nil {
		return nil, err
	}

	reminderSvc, err := reminders.NewService(reminders.Dependencies{
		Credentials: providers.Credentials,
		Audit:       auditSvc,
		Notifier:    notifier,
		Logger:      lgr,
		Metrics:     collector,
		Config:      cfg.Reminders,
	})
	if err != nil {
		return nil, err
	}

	cmdRegistry, err := commands.New(commands.Dependencies{
		Credentials: credSvc,
		Shares:      shareSvc,
		Reminders:   reminderSvc,
		Logger:      lgr,
		Clock:       clock,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:      cfg,
		Storage:     providers,
		Logger:      lgr,
		Metrics:     collector,
		Adapters:    registry,
		Dispatcher:  dispatcherSvc,
		Notifier:    notifier,
		KeySource:   source,
		Engine:      engine,
		Limiter:     limiter,
		Audit:       auditSvc,
		Credentials: credSvc,
		Shares:      shareSvc,
		Reminders:   reminderSvc,
		Commands:    cmdRegistry,
	}, nil
}

func resolveEngine(ctx context.Context, cfg config.CryptoConfig, opts Options, providers storage.Providers, lgr logger.Logger) (*secrets.Engine, keys.Source) {
	store := opts.Params
	if store == nil && cfg.ParamStore == "aws" {
		sm, err := awssm.NewFromConfig(ctx, awssm.Config{Region: cfg.AWSRegion, Prefix: cfg.AWSPrefix})
		if err != nil {
			lgr.Error("crypto parameter store unavailable", logger.Err(err))
			return secrets.Broken(err), ""
		}
		store = sm
	}
	if store == nil {
		store = providers.Params
	}

	material, err := keys.NewProvider(keys.Options{
		Static:              cfg.MasterKey,
		Params:              store,
		ParamKey:            cfg.ParamKey,
		DisableAutoGenerate: cfg.DisableAutoGenerate,
		Logger:              lgr,
		Getenv:              opts.Getenv,
	}).Resolve(ctx)
	if err != nil {
		lgr.Error("master key unavailable; secret operations are disabled", logger.Err(err))
		return secrets.Broken(err), ""
	}
	lgr.Info("master key resolved", logger.Field{Key: "source", Value: string(material.Source)})
	return secrets.NewEngine(material.Raw), material.Source
}

func rateCounter(cfg config.RateLimitConfig, opts Options, providers storage.Providers, clock func() time.Time) (ratelimit.Counter, error) {
	if opts.Counter != nil {
		return opts.Counter, nil
	}
	switch cfg.Backend {
	case "db":
		if providers.Counters == nil {
			return nil, errors.New("di: rate_limit.backend db requires a SQL storage driver")
		}
		return providers.Counters, nil
	case "redis":
		client := opts.Redis
		if client == nil {
			client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		}
		return ratelimit.NewRedisCounter(client)
	default:
		return ratelimit.NewMemoryCounter(clock), nil
	}
}

func channelAdapters(cfg config.NotificationsConfig, lgr logger.Logger) []adapters.Messenger {
	var out []adapters.Messenger
	for _, ch := range cfg.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case "console":
			out = append(out, console.New(lgr))
		case "webhook":
			out = append(out, webhook.New(lgr, webhook.WithConfig(webhook.Config{
				URL:     cfg.WebhookURL,
				Timeout: cfg.SendTimeout,
			})))
		case "ses":
			out = append(out, aws_ses.New(lgr, aws_ses.WithConfig(aws_ses.Config{
				From:   cfg.SESFrom,
				Region: cfg.SESRegion,
			})))
		}
	}
	return out
}
