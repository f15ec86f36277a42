package notify

import (
	"context"
	"sync"
)

// Kind tags the reason for a notice.
type Kind string

const (
	KindShareGranted        Kind = "share_granted"
	KindRotationDueTomorrow Kind = "rotation_due_tomorrow"
	KindRotationDue         Kind = "rotation_due"
)

// Notice is the channel-agnostic payload handed to a Notifier.
type Notice struct {
	Kind         Kind
	Title        string
	Body         string
	Urgent       bool
	CredentialID string
}

// Notifier delivers notices to a recipient. Callers treat it as fire and
// forget: errors are logged, never propagated to the triggering operation.
type Notifier interface {
	Notify(ctx context.Context, recipient string, notice Notice) error
}

// Nop drops every notice.
type Nop struct{}

func (Nop) Notify(context.Context, string, Notice) error { return nil }

// Delivery is one notice captured by Recorder.
type Delivery struct {
	Recipient string
	Notice    Notice
}

// Recorder keeps deliveries in memory. Fail, when set, decides per recipient
// whether the call errors; failed deliveries are not recorded.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Fail       func(recipient string) error
}

func (r *Recorder) Notify(_ context.Context, recipient string, notice Notice) error {
	if r.Fail != nil {
		if err := r.Fail(recipient); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Recipient: recipient, Notice: notice})
	return nil
}

// Deliveries returns a copy of the captured deliveries.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}
