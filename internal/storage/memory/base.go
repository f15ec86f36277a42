package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

type baseMemoryRepo[T any] struct {
	mu        sync.RWMutex
	records   map[uuid.UUID]T
	extract   func(*T) *domain.RecordMeta
	clone     func(T) T
	entityStr string
}

func newBaseMemoryRepo[T any](entity string, extract func(*T) *domain.RecordMeta, clone func(T) T) baseMemoryRepo[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return baseMemoryRepo[T]{
		records:   make(map[uuid.UUID]T),
		extract:   extract,
		clone:     clone,
		entityStr: entity,
	}
}

// createLocked expects r.mu to be held.
func (r *baseMemoryRepo[T]) createLocked(record *T) error {
	base := r.extract(record)
	base.EnsureID()
	if _, exists := r.records[base.ID]; exists {
		return fmt.Errorf("%s %s: %w", r.entityStr, base.ID, store.ErrDuplicate)
	}
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	r.records[base.ID] = r.clone(*record)
	return nil
}

func (r *baseMemoryRepo[T]) create(ctx context.Context, record *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(record)
}

func (r *baseMemoryRepo[T]) update(ctx context.Context, record *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := r.extract(record)
	if base.ID == uuid.Nil {
		return store.ErrNotFound
	}
	if _, ok := r.records[base.ID]; !ok {
		return store.ErrNotFound
	}
	base.UpdatedAt = time.Now().UTC()
	r.records[base.ID] = r.clone(*record)
	return nil
}

func (r *baseMemoryRepo[T]) getByID(ctx context.Context, id uuid.UUID) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := r.clone(record)
	return &out, nil
}

// filter returns copies of matching records sorted by less, or by creation
// time when less is nil.
func (r *baseMemoryRepo[T]) filter(match func(*T) bool, less func(a, b *T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []T
	for _, record := range r.records {
		if match != nil && !match(&record) {
			continue
		}
		filtered = append(filtered, r.clone(record))
	}
	if less == nil {
		less = func(a, b *T) bool {
			ma, mb := r.extract(a), r.extract(b)
			if ma.CreatedAt.Equal(mb.CreatedAt) {
				return ma.ID.String() < mb.ID.String()
			}
			return ma.CreatedAt.Before(mb.CreatedAt)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return less(&filtered[i], &filtered[j])
	})
	return filtered
}

func (r *baseMemoryRepo[T]) list(ctx context.Context, opts store.ListOptions, match func(*T) bool, less func(a, b *T) bool) (store.ListResult[T], error) {
	filtered := r.filter(func(rec *T) bool {
		base := r.extract(rec)
		if !opts.Since.IsZero() && base.CreatedAt.Before(opts.Since) {
			return false
		}
		if !opts.Until.IsZero() && base.CreatedAt.After(opts.Until) {
			return false
		}
		return match == nil || match(rec)
	}, less)
	return paginate(filtered, opts), nil
}

func (r *baseMemoryRepo[T]) delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *baseMemoryRepo[T]) deleteWhere(match func(*T) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, record := range r.records {
		if match(&record) {
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

func paginate[T any](items []T, opts store.ListOptions) store.ListResult[T] {
	total := len(items)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := total
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return store.ListResult[T]{
		Items: items[start:end],
		Total: total,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
