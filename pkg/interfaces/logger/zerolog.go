package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Zerolog adapts a zerolog.Logger to the Logger contract.
type Zerolog struct {
	zl zerolog.Logger
}

var _ Logger = (*Zerolog)(nil)

// NewZerolog wraps an existing zerolog logger.
func NewZerolog(zl zerolog.Logger) *Zerolog {
	return &Zerolog{zl: zl}
}

// New returns a JSON logger writing to w at the given level name. Unknown
// levels fall back to info.
func New(w io.Writer, level string) *Zerolog {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return NewZerolog(zerolog.New(w).Level(lvl).With().Timestamp().Logger())
}

// Default returns an info-level logger on stderr.
func Default() Logger {
	return New(os.Stderr, "info")
}

func (l *Zerolog) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, fieldValue(f.Value))
	}
	return &Zerolog{zl: ctx.Logger()}
}

func (l *Zerolog) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *Zerolog) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l *Zerolog) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l *Zerolog) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			ev = ev.AnErr(f.Key, err)
			continue
		}
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

func fieldValue(v any) any {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}
