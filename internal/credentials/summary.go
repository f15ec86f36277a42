package credentials

import (
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/google/uuid"
)

// Summary is the list projection of a credential. It never carries secrets.
type Summary struct {
	ID             uuid.UUID           `json:"id"`
	Name           string              `json:"name"`
	AccessType     domain.AccessType   `json:"access_type"`
	Environment    domain.Environment  `json:"environment"`
	BusinessUnit   domain.BusinessUnit `json:"business_unit"`
	Criticality    domain.Criticality  `json:"criticality"`
	State          domain.State        `json:"state"`
	Privacy        domain.Privacy      `json:"privacy"`
	RotationDays   int                 `json:"rotation_days,omitempty"`
	LastRotationAt time.Time           `json:"last_rotation_at,omitempty"`
	NextRotationAt time.Time           `json:"next_rotation_at,omitempty"`
	DaysToRotation int                 `json:"days_to_rotation"`
	RotationDue    bool                `json:"rotation_due"`
	SecretSet      bool                `json:"secret_set"`
	Owners         []string            `json:"owners"`
}

func summarize(c domain.Credential, now time.Time) Summary {
	status := c.RotationStatus(now)
	return Summary{
		ID:             c.ID,
		Name:           c.Name,
		AccessType:     c.AccessType,
		Environment:    c.Environment,
		BusinessUnit:   c.BusinessUnit,
		Criticality:    c.Criticality,
		State:          c.State,
		Privacy:        c.Privacy,
		RotationDays:   c.RotationDays,
		LastRotationAt: c.LastRotationAt,
		NextRotationAt: status.NextRotationAt,
		DaysToRotation: status.DaysToRotation,
		RotationDue:    status.Due,
		SecretSet:      c.SecretSet,
		Owners:         append([]string(nil), c.Owners...),
	}
}
