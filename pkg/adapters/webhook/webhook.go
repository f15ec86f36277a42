package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-access-vault/pkg/adapters"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/retry"
)

// Adapter posts notices to an HTTP endpoint (generic webhook, chat bridges).
type Adapter struct {
	name   string
	base   adapters.BaseAdapter
	caps   adapters.Capability
	cfg    Config
	client *http.Client
}

// Config configures the webhook adapter.
type Config struct {
	URL             string
	Method          string
	Headers         map[string]string
	Timeout         time.Duration
	BasicAuthUser   string
	BasicAuthPass   string
	DryRun          bool
	ForwardMetadata bool // include msg.Metadata in payload
}

type Option func(*Adapter)

// WithName overrides the adapter name.
func WithName(name string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(name) != "" {
			a.name = name
		}
	}
}

// WithConfig sets the adapter configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		if cfg.Method == "" {
			cfg.Method = http.MethodPost
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = 10 * time.Second
		}
		a.cfg = cfg
	}
}

// WithClient allows injecting a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// New constructs the webhook adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "webhook",
		base: adapters.NewBaseAdapter(l),
		caps: adapters.Capability{
			Name:     "webhook",
			Channels: []string{"webhook", "chat"},
			Formats:  []string{"application/json"},
		},
		cfg: Config{
			Method:  http.MethodPost,
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.client == nil {
		adapter.client = &http.Client{Timeout: adapter.cfg.Timeout}
	}
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability { return a.caps }

type payload struct {
	Kind     string         `json:"kind"`
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Urgent   bool           `json:"urgent"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Send posts the notice as JSON. Client errors (4xx) are not retried.
func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	if a.cfg.DryRun {
		a.base.Logger().Info("[webhook:dry-run] send skipped",
			logger.Field{Key: "url", Value: a.cfg.URL},
			logger.Field{Key: "kind", Value: msg.Kind},
		)
		return nil
	}

	if strings.TrimSpace(a.cfg.URL) == "" {
		return retry.Permanent(fmt.Errorf("webhook: url is required"))
	}

	body := payload{
		Kind:   msg.Kind,
		To:     msg.To,
		Title:  msg.Subject,
		Body:   msg.Body,
		Urgent: msg.Urgent,
	}
	if a.cfg.ForwardMetadata {
		body.Metadata = msg.Metadata
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("webhook: encode payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(a.cfg.Method), a.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		return retry.Permanent(fmt.Errorf("webhook: build request: %w", err))
	}

	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.cfg.BasicAuthUser != "" {
		req.SetBasicAuth(a.cfg.BasicAuthUser, a.cfg.BasicAuthPass)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return retry.Permanent(fmt.Errorf("webhook: unexpected status %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	a.base.LogSuccess(a.name, msg)
	return nil
}
