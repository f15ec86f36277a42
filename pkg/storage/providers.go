package storage

import (
	bunrepo "github.com/goliatone/go-access-vault/internal/storage/bun"
	"github.com/goliatone/go-access-vault/internal/storage/memory"
	"github.com/goliatone/go-access-vault/pkg/interfaces/metrics"
	"github.com/goliatone/go-access-vault/pkg/interfaces/params"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/goliatone/go-access-vault/pkg/ratelimit"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// MetricsCollector enables downstream observers to record repo timings.
type MetricsCollector = metrics.Collector

// Providers exposes all repositories needed by services.
type Providers struct {
	Credentials store.CredentialRepository
	Secrets     store.SecretRepository
	Shares      store.ShareRepository
	Logs        store.LogRepository
	// Params backs master key bootstrap when no external store is configured.
	Params      params.Store
	// Counters is the shared rate-limit counter of the backend, nil for memory
	// providers so callers pick their own.
	Counters    ratelimit.Counter
	Transaction store.TransactionManager
	Metrics     MetricsCollector
}

type Option func(*Providers)

// WithMetricsCollector registers a metrics collector returned alongside repos.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(p *Providers) {
		p.Metrics = collector
	}
}

// NewMemoryProviders returns repositories backed by in-memory maps.
func NewMemoryProviders(opts ...Option) Providers {
	providers := Providers{
		Credentials: memory.NewCredentialRepository(),
		Secrets:     memory.NewSecretRepository(),
		Shares:      memory.NewShareRepository(),
		Logs:        memory.NewLogRepository(),
		Params:      params.NewMemory(),
		Transaction: &store.NopTransactionManager{},
		Metrics:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(&providers)
	}
	return providers
}

// NewBunProviders wires Bun-backed repositories using go-repository-bun.
// The caller owns the *bun.DB lifecycle; see Open.
func NewBunProviders(db *bun.DB, opts ...Option) Providers {
	if db == nil {
		panic("storage: bun DB is required")
	}

	// Register models so go-persistence-bun migrations can pick them up.
	persistence.RegisterModel(bunrepo.Models()...)

	providers := Providers{
		Credentials: bunrepo.NewCredentialRepository(db),
		Secrets:     bunrepo.NewSecretRepository(db),
		Shares:      bunrepo.NewShareRepository(db),
		Logs:        bunrepo.NewLogRepository(db),
		Params:      bunrepo.NewParamStore(db),
		Counters:    bunrepo.NewRateCounterStore(db, nil),
		Transaction: bunrepo.NewTxManager(db),
		Metrics:     metrics.Nop{},
	}

	for _, opt := range opts {
		opt(&providers)
	}
	return providers
}
