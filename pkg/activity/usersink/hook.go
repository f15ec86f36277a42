package usersink

import (
	"context"
	"time"

	"github.com/goliatone/go-access-vault/pkg/activity"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Channel tags every record forwarded to go-users.
const Channel = "access_vault"

// Hook adapts vault activity events into go-users ActivitySink records.
type Hook struct {
	Sink types.ActivitySink
}

// Notify maps the activity event into a types.ActivityRecord and forwards it.
// Actor identifiers that are not UUIDs are kept in the record data.
func (h Hook) Notify(ctx context.Context, evt activity.Event) {
	if h.Sink == nil {
		return
	}
	actor := parseUUID(evt.ActorID)
	record := types.ActivityRecord{
		ID:         uuid.New(),
		UserID:     actor,
		ActorID:    actor,
		Verb:       evt.Verb,
		ObjectType: evt.ObjectType,
		ObjectID:   evt.ObjectID,
		Channel:    Channel,
		Data:       buildData(evt, actor),
		OccurredAt: evt.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	_ = h.Sink.Log(ctx, record)
}

func buildData(evt activity.Event, actor uuid.UUID) map[string]any {
	data := activity.CloneMetadata(evt.Metadata)
	if data == nil {
		data = make(map[string]any)
	}
	if evt.CredentialID != "" {
		data["credential_id"] = evt.CredentialID
	}
	if evt.Detail != "" {
		data["detail"] = evt.Detail
	}
	if actor == uuid.Nil && evt.ActorID != "" {
		data["actor"] = evt.ActorID
	}
	return data
}

func parseUUID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
