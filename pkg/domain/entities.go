package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordMeta captures identifiers and audit fields shared across entities.
type RecordMeta struct {
	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// EnsureID assigns a UUID when the struct is about to be persisted.
func (m *RecordMeta) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}

// JSONMap persists arbitrary metadata fields as JSON.
type JSONMap map[string]any

// Value implements driver.Valuer. Text keeps the value portable across
// sqlite and postgres jsonb columns.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "null", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if m == nil {
		return errors.New("JSONMap: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("JSONMap: unsupported type %T", value)
	}
}

// StringList stores []string as JSON. Grant lists use it so membership checks
// stay on the row instead of a join table.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(value any) error {
	if s == nil {
		return errors.New("StringList: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(s))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(s))
	default:
		return fmt.Errorf("StringList: unsupported type %T", value)
	}
}

// Contains reports whether value is part of the list.
func (s StringList) Contains(value string) bool {
	return value != "" && slices.Contains(s, value)
}

// Intersects reports whether any of values is part of the list.
func (s StringList) Intersects(values []string) bool {
	for _, v := range values {
		if s.Contains(v) {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the backing array.
func (s StringList) Clone() StringList {
	if s == nil {
		return nil
	}
	return append(StringList(nil), s...)
}

// Normalize trims duplicates and empty entries while keeping first-seen order.
func (s StringList) Normalize() StringList {
	if len(s) == 0 {
		return StringList{}
	}
	seen := make(map[string]struct{}, len(s))
	out := make(StringList, 0, len(s))
	for _, v := range s {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Credential is a named, owned resource holding one or more secrets.
type Credential struct {
	bun.BaseModel `bun:"table:vault_credentials,alias:vc"`
	RecordMeta

	Name         string       `bun:"name,notnull,unique:vault_credentials_name_env" json:"name"`
	Description  string       `bun:"description" json:"description,omitempty"`
	AccessType   AccessType   `bun:"access_type,notnull" json:"access_type"`
	Criticality  Criticality  `bun:"criticality,notnull" json:"criticality"`
	BusinessUnit BusinessUnit `bun:"business_unit,notnull" json:"business_unit"`
	Environment  Environment  `bun:"environment,notnull,unique:vault_credentials_name_env" json:"environment"`
	Privacy      Privacy      `bun:"privacy,notnull" json:"privacy"`
	// State is advisory. Rotation logic reports due dates but never changes it.
	State State `bun:"state,notnull" json:"state"`

	RotationDays           int       `bun:"rotation_days,notnull,default:0" json:"rotation_days,omitempty"`
	LastRotationAt         time.Time `bun:"last_rotation_at,nullzero" json:"last_rotation_at,omitempty"`
	RotationReminderDay1At time.Time `bun:"rotation_reminder_day1_at,nullzero" json:"rotation_reminder_day1_at,omitempty"`
	RotationReminderDueAt  time.Time `bun:"rotation_reminder_due_at,nullzero" json:"rotation_reminder_due_at,omitempty"`

	Owners               StringList `bun:"owners,type:jsonb" json:"owners"`
	AllowedUsers         StringList `bun:"allowed_users,type:jsonb" json:"allowed_users,omitempty"`
	AllowedGroups        StringList `bun:"allowed_groups,type:jsonb" json:"allowed_groups,omitempty"`
	AllowedManagerUsers  StringList `bun:"allowed_manager_users,type:jsonb" json:"allowed_manager_users,omitempty"`
	AllowedManagerGroups StringList `bun:"allowed_manager_groups,type:jsonb" json:"allowed_manager_groups,omitempty"`

	// SecretSet is denormalized from the secrets table so due queries can
	// skip credentials that hold nothing to rotate.
	SecretSet bool    `bun:"secret_set,notnull" json:"secret_set"`
	Version   int64   `bun:"version,notnull" json:"version"`
	Metadata  JSONMap `bun:"metadata,type:jsonb,nullzero" json:"metadata,omitempty"`
}

// Clone returns a deep copy of the credential grant lists and metadata.
func (c Credential) Clone() Credential {
	out := c
	out.Owners = c.Owners.Clone()
	out.AllowedUsers = c.AllowedUsers.Clone()
	out.AllowedGroups = c.AllowedGroups.Clone()
	out.AllowedManagerUsers = c.AllowedManagerUsers.Clone()
	out.AllowedManagerGroups = c.AllowedManagerGroups.Clone()
	if c.Metadata != nil {
		out.Metadata = make(JSONMap, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Secret is one encrypted payload attached to a credential.
type Secret struct {
	bun.BaseModel `bun:"table:vault_secrets,alias:vs"`
	RecordMeta

	CredentialID    uuid.UUID  `bun:"credential_id,type:uuid,notnull" json:"credential_id"`
	Name            string     `bun:"name" json:"name,omitempty"`
	Sequence        int        `bun:"sequence,notnull,default:10" json:"sequence"`
	SecretType      AccessType `bun:"secret_type,notnull" json:"secret_type"`
	LoginIdentifier string     `bun:"login_identifier" json:"login_identifier,omitempty"`
	// Payload is the Crypto Engine token. It never leaves the storage and
	// disclosure layers.
	Payload        string    `bun:"payload" json:"-"`
	LastRotationAt time.Time `bun:"last_rotation_at,nullzero" json:"last_rotation_at,omitempty"`
}

// SecretSet reports whether a payload is stored.
func (s Secret) SecretSet() bool {
	return s.Payload != ""
}

// SecretView is the read projection of a Secret. It never carries the payload.
type SecretView struct {
	ID              uuid.UUID  `json:"id"`
	CredentialID    uuid.UUID  `json:"credential_id"`
	Name            string     `json:"name,omitempty"`
	Sequence        int        `json:"sequence"`
	SecretType      AccessType `json:"secret_type"`
	LoginIdentifier string     `json:"login_identifier,omitempty"`
	SecretSet       bool       `json:"secret_set"`
	LastRotationAt  time.Time  `json:"last_rotation_at,omitempty"`
}

// View strips the payload.
func (s Secret) View() SecretView {
	return SecretView{
		ID:              s.ID,
		CredentialID:    s.CredentialID,
		Name:            s.Name,
		Sequence:        s.Sequence,
		SecretType:      s.SecretType,
		LoginIdentifier: s.LoginIdentifier,
		SecretSet:       s.SecretSet(),
		LastRotationAt:  s.LastRotationAt,
	}
}

// Share is a time-bounded delegated read grant. Shares are deactivated, never
// deleted, and are immutable once inactive.
type Share struct {
	bun.BaseModel `bun:"table:vault_shares,alias:vsh"`
	RecordMeta

	CredentialID  uuid.UUID `bun:"credential_id,type:uuid,notnull" json:"credential_id"`
	Grantee       string    `bun:"grantee,notnull" json:"grantee"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	Active        bool      `bun:"active,notnull" json:"active"`
	CreatedBy     string    `bun:"created_by,notnull" json:"created_by"`
	DeactivatedAt time.Time `bun:"deactivated_at,nullzero" json:"deactivated_at,omitempty"`
	DeactivatedBy string    `bun:"deactivated_by" json:"deactivated_by,omitempty"`
}

// Usable reports whether the share grants read access at now.
func (s Share) Usable(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// LogEntry is an append-only audit record. The autoincrement ID breaks
// timestamp ties when listing newest first.
type LogEntry struct {
	bun.BaseModel `bun:"table:vault_logs,alias:vl"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	CredentialID uuid.UUID `bun:"credential_id,type:uuid,notnull" json:"credential_id"`
	Actor        string    `bun:"actor,notnull" json:"actor"`
	Action       Action    `bun:"action,notnull" json:"action"`
	Timestamp    time.Time `bun:"timestamp,notnull" json:"timestamp"`
	Detail       string    `bun:"detail" json:"detail,omitempty"`
}

// Param is a generic key/value row backing the parameter store.
type Param struct {
	bun.BaseModel `bun:"table:vault_params,alias:vp"`

	Key       string    `bun:"param_key,pk" json:"key"`
	Value     string    `bun:"param_value,notnull" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// RateCounter is a single (actor, credential, minute bucket) counter row.
type RateCounter struct {
	bun.BaseModel `bun:"table:vault_rate_counters,alias:vrc"`

	Key       string    `bun:"bucket_key,pk" json:"key"`
	Count     int64     `bun:"hits,notnull" json:"count"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
}
