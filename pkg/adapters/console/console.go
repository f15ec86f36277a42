package console

import (
	"context"
	"fmt"

	"github.com/goliatone/go-access-vault/pkg/adapters"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
)

// Adapter writes notices to the configured logger for local setups.
type Adapter struct {
	name string
	base adapters.BaseAdapter
	caps adapters.Capability
	opts Options
}

type Option func(*Adapter)

// Options tweak console output.
type Options struct {
	Structured bool // when true, emit structured fields instead of a formatted line
}

// WithName overrides the adapter provider name (defaults to "console").
func WithName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

// WithStructured enables structured logging mode.
func WithStructured(enabled bool) Option {
	return func(a *Adapter) {
		a.opts.Structured = enabled
	}
}

// New constructs a console adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "console",
		caps: adapters.Capability{
			Name:     "console",
			Channels: []string{"console", "chat"},
			Formats:  []string{"text/plain"},
		},
	}
	adapter.base = adapters.NewBaseAdapter(l)
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

// Name implements adapters.Messenger.
func (a *Adapter) Name() string {
	return a.name
}

// Capabilities implements adapters.Messenger.
func (a *Adapter) Capabilities() adapters.Capability {
	return a.caps
}

// Send logs the notice. Urgent notices are logged at warn level.
func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	emit := a.base.Logger().Info
	if msg.Urgent {
		emit = a.base.Logger().Warn
	}

	if a.opts.Structured {
		emit("console delivery",
			logger.Field{Key: "kind", Value: msg.Kind},
			logger.Field{Key: "to", Value: msg.To},
			logger.Field{Key: "subject", Value: msg.Subject},
			logger.Field{Key: "text", Value: msg.Body},
			logger.Field{Key: "urgent", Value: msg.Urgent},
			logger.Field{Key: "credential_id", Value: adapters.MetaString(msg.Metadata, "credential_id")},
		)
		return nil
	}

	emit(fmt.Sprintf("[console][%s] subject=%s to=%s body=%s", msg.Kind, msg.Subject, msg.To, msg.Body))
	return nil
}
