package keys

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-access-vault/pkg/interfaces/params"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestResolvePrecedence(t *testing.T) {
	envKey, _ := Generate()
	cfgKey, _ := Generate()
	store := params.NewMemory()
	storedKey, _ := Generate()
	require.NoError(t, store.Set(context.Background(), ParamKey, storedKey))

	p := NewProvider(Options{
		Static: cfgKey,
		Params: store,
		Getenv: envFrom(map[string]string{EnvVar: envKey}),
	})
	m, err := p.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceEnv, m.Source)

	p = NewProvider(Options{Static: cfgKey, Params: store, Getenv: envFrom(nil)})
	m, err = p.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceConfig, m.Source)

	p = NewProvider(Options{Params: store, Getenv: envFrom(nil)})
	m, err = p.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceParams, m.Source)
	raw, _ := base64.URLEncoding.DecodeString(storedKey)
	require.Equal(t, raw, m.Raw)
}

func TestResolveGeneratesAndPersists(t *testing.T) {
	store := params.NewMemory()
	p := NewProvider(Options{Params: store, Getenv: envFrom(nil)})

	first, err := p.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, first.Source)
	require.Len(t, first.Raw, Size)

	second, err := p.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, SourceParams, second.Source)
	require.Equal(t, first.Raw, second.Raw)
}

func TestResolveInvalidKeyIsFatal(t *testing.T) {
	p := NewProvider(Options{
		Static: base64.StdEncoding.EncodeToString([]byte("short")),
		Params: params.NewMemory(),
		Getenv: envFrom(nil),
	})
	_, err := p.Resolve(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidKey))

	var invalid *InvalidKeyError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, SourceConfig, invalid.Source)
	require.Equal(t, 5, invalid.Actual)
}

func TestResolveWithoutGeneration(t *testing.T) {
	p := NewProvider(Options{Params: params.NewMemory(), DisableAutoGenerate: true, Getenv: envFrom(nil)})
	_, err := p.Resolve(context.Background())
	require.ErrorIs(t, err, ErrKeyMissing)
}

func TestValidate(t *testing.T) {
	raw := make([]byte, Size)
	for i := range raw {
		raw[i] = 0xfb
	}
	require.True(t, Validate(base64.StdEncoding.EncodeToString(raw)))
	require.True(t, Validate(base64.URLEncoding.EncodeToString(raw)))
	require.True(t, Validate(base64.RawURLEncoding.EncodeToString(raw)))
	require.False(t, Validate(""))
	require.False(t, Validate("not base64 !!"))
	require.False(t, Validate(base64.StdEncoding.EncodeToString(raw[:16])))
	require.False(t, Validate(strings.Repeat("A", 64)))
}
