package activity

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Event mirrors an audit entry for external activity consumers. Verb is the
// audit action prefixed with "vault.", e.g. "vault.copy".
type Event struct {
	Verb         string
	ActorID      string
	ObjectType   string
	ObjectID     string
	CredentialID string
	Detail       string
	Metadata     map[string]any
	OccurredAt   time.Time
}

// Hook observers receive activity events after the audit entry is stored.
type Hook interface {
	Notify(ctx context.Context, evt Event)
}

type Hooks []Hook

// Notify delivers the event to every hook, skipping nil entries. Each hook
// gets its own metadata copy.
func (h Hooks) Notify(ctx context.Context, evt Event) {
	if len(h) == 0 {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	for _, hook := range h {
		if hook == nil {
			continue
		}
		e := evt
		e.Metadata = CloneMetadata(evt.Metadata)
		hook.Notify(ctx, e)
	}
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, evt Event)

func (f HookFunc) Notify(ctx context.Context, evt Event) { f(ctx, evt) }

// Only forwards events whose verb is listed, e.g. to ship disclosures alone
// to an external trail.
func Only(next Hook, verbs ...string) Hook {
	return HookFunc(func(ctx context.Context, evt Event) {
		if next != nil && slices.Contains(verbs, evt.Verb) {
			next.Notify(ctx, evt)
		}
	})
}

type Nop struct{}

func (Nop) Notify(_ context.Context, _ Event) {}

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Snapshot returns a copy of the recorded events.
func (r *Recorder) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// CloneMetadata makes a shallow copy so hooks can mutate without affecting callers.
func CloneMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
