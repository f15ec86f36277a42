package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

// LogRepository keeps audit entries in insertion order.
type LogRepository struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	nextID  int64
}

var _ store.LogRepository = (*LogRepository)(nil)

func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

func (r *LogRepository) Append(ctx context.Context, entry *domain.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *LogRepository) ListByCredential(ctx context.Context, credentialID uuid.UUID, opts store.ListOptions) (store.ListResult[domain.LogEntry], error) {
	r.mu.RLock()
	var items []domain.LogEntry
	for _, e := range r.entries {
		if e.CredentialID != credentialID {
			continue
		}
		if !opts.Since.IsZero() && e.Timestamp.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && e.Timestamp.After(opts.Until) {
			continue
		}
		items = append(items, e)
	}
	r.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].ID > items[j].ID
	})
	return paginate(items, opts), nil
}

func (r *LogRepository) DeleteByCredential(ctx context.Context, credentialID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.CredentialID != credentialID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}
