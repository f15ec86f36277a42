package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-access-vault/internal/storage/memory"
	"github.com/goliatone/go-access-vault/pkg/activity"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

type failingRepo struct {
	store.LogRepository
}

func (failingRepo) Append(context.Context, *domain.LogEntry) error {
	return errors.New("disk full")
}

func TestRecordAppendsAndNotifies(t *testing.T) {
	rec := &activity.Recorder{}
	ts := time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(Dependencies{
		Repository: memory.NewLogRepository(),
		Activity:   activity.Hooks{rec},
		Clock:      func() time.Time { return ts },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	credID := uuid.New()

	entry, err := svc.Record(ctx, Entry{CredentialID: credID, Actor: "alice", Action: domain.ActionCopy, Detail: "secret copied (primary)"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.ID == 0 || !entry.Timestamp.Equal(ts) {
		t.Fatalf("unexpected entry %+v", entry)
	}
	events := rec.Snapshot()
	if len(events) != 1 || events[0].Verb != "vault.copy" || events[0].ObjectType != "credential" {
		t.Fatalf("unexpected activity %+v", events)
	}

	list, err := svc.List(ctx, credID, store.ListOptions{})
	if err != nil || list.Total != 1 {
		t.Fatalf("list: %v %d", err, list.Total)
	}
}

func TestRecordRejectsInvalidEntries(t *testing.T) {
	svc, _ := NewService(Dependencies{Repository: memory.NewLogRepository()})
	ctx := context.Background()

	cases := []Entry{
		{Actor: "alice", Action: domain.ActionCreate},
		{CredentialID: uuid.New(), Action: domain.ActionCreate},
		{CredentialID: uuid.New(), Actor: "alice", Action: "delete"},
	}
	for _, e := range cases {
		if _, err := svc.Record(ctx, e); !errors.Is(err, ErrInvalidEntry) {
			t.Fatalf("expected ErrInvalidEntry for %+v, got %v", e, err)
		}
	}
}

func TestRecordFailureSkipsActivity(t *testing.T) {
	rec := &activity.Recorder{}
	svc, _ := NewService(Dependencies{Repository: failingRepo{}, Activity: activity.Hooks{rec}})

	if _, err := svc.Record(context.Background(), Entry{CredentialID: uuid.New(), Actor: "alice", Action: domain.ActionUpdate}); err == nil {
		t.Fatalf("expected append error")
	}
	if len(rec.Snapshot()) != 0 {
		t.Fatalf("activity must not fire for unpersisted entries")
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(Dependencies{}); err == nil {
		t.Fatalf("expected error")
	}
}
