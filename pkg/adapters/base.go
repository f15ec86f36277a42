package adapters

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
)

// BaseAdapter provides shared helpers for simple adapters.
type BaseAdapter struct {
	logger logger.Logger
}

func NewBaseAdapter(l logger.Logger) BaseAdapter {
	if l == nil {
		l = &logger.Nop{}
	}
	return BaseAdapter{logger: l}
}

func (b BaseAdapter) LogSuccess(name string, msg Message) {
	b.Logger().Info("adapter delivered message",
		logger.Field{Key: "adapter", Value: name},
		logger.Field{Key: "kind", Value: msg.Kind},
		logger.Field{Key: "to", Value: msg.To},
	)
}

func (b BaseAdapter) LogFailure(name string, msg Message, err error) {
	b.Logger().Error("adapter delivery failed",
		logger.Field{Key: "adapter", Value: name},
		logger.Field{Key: "kind", Value: msg.Kind},
		logger.Field{Key: "to", Value: msg.To},
		logger.Err(err),
	)
}

// Logger exposes the adapter logger for structured diagnostics.
func (b BaseAdapter) Logger() logger.Logger {
	if b.logger == nil {
		return &logger.Nop{}
	}
	return b.logger
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// MetaString reads a trimmed string from message metadata.
func MetaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	raw, ok := meta[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
