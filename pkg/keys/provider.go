package keys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/params"
)

const (
	// EnvVar is consulted before any other source.
	EnvVar = "ACCESS_VAULT_MASTER_KEY"
	// ParamKey names the parameter store entry holding the bootstrap key.
	ParamKey = "access_vault.master_key"
)

// Source identifies where a master key was resolved from.
type Source string

const (
	SourceEnv       Source = "env"
	SourceConfig    Source = "config"
	SourceParams    Source = "params"
	SourceGenerated Source = "generated"
)

// Material is a resolved and validated master key.
type Material struct {
	Raw    []byte
	Source Source
}

// Options configures a Provider.
type Options struct {
	EnvVar   string
	Static   string
	Params   params.Store
	ParamKey string
	// DisableAutoGenerate turns a missing key into ErrKeyMissing instead of
	// bootstrapping one into the parameter store.
	DisableAutoGenerate bool
	Logger              logger.Logger
	Getenv              func(string) string
}

// Provider resolves the master key: environment, static config, then the
// parameter store.
type Provider struct {
	envVar   string
	static   string
	params   params.Store
	paramKey string
	generate bool
	logger   logger.Logger
	getenv   func(string) string
}

func NewProvider(opts Options) *Provider {
	if opts.EnvVar == "" {
		opts.EnvVar = EnvVar
	}
	if opts.ParamKey == "" {
		opts.ParamKey = ParamKey
	}
	if opts.Logger == nil {
		opts.Logger = &logger.Nop{}
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	return &Provider{
		envVar:   opts.EnvVar,
		static:   strings.TrimSpace(opts.Static),
		params:   opts.Params,
		paramKey: opts.ParamKey,
		generate: !opts.DisableAutoGenerate,
		logger:   opts.Logger,
		getenv:   opts.Getenv,
	}
}

// Resolve returns the first configured key. A configured but invalid key is
// an error; lower precedence sources are not consulted in that case.
func (p *Provider) Resolve(ctx context.Context) (Material, error) {
	if v := strings.TrimSpace(p.getenv(p.envVar)); v != "" {
		return material(v, SourceEnv)
	}
	if p.static != "" {
		return material(p.static, SourceConfig)
	}
	if p.params == nil {
		return Material{}, ErrKeyMissing
	}

	v, ok, err := p.params.Get(ctx, p.paramKey)
	if err != nil {
		return Material{}, fmt.Errorf("keys: read parameter store: %w", err)
	}
	if ok && strings.TrimSpace(v) != "" {
		return material(v, SourceParams)
	}
	if !p.generate {
		return Material{}, ErrKeyMissing
	}

	generated, err := Generate()
	if err != nil {
		return Material{}, err
	}
	if err := p.params.Set(ctx, p.paramKey, generated); err != nil {
		return Material{}, fmt.Errorf("keys: persist generated key: %w", err)
	}
	p.logger.Warn("generated master key and stored it in the parameter store; configure one explicitly for production",
		logger.Field{Key: "env_var", Value: p.envVar},
		logger.Field{Key: "param_key", Value: p.paramKey},
	)
	return material(generated, SourceGenerated)
}

func material(encoded string, source Source) (Material, error) {
	raw, err := Decode(encoded)
	if err != nil {
		var invalid *InvalidKeyError
		if errors.As(err, &invalid) {
			invalid.Source = source
		}
		return Material{}, err
	}
	return Material{Raw: raw, Source: source}, nil
}
