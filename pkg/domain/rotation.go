package domain

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// RotationStatus is the derived rotation view of a credential.
type RotationStatus struct {
	// NextRotationAt is zero when there is nothing scheduled.
	NextRotationAt time.Time `json:"next_rotation_at,omitempty"`
	DaysToRotation int       `json:"days_to_rotation"`
	Due            bool      `json:"rotation_due"`
}

// RotationStatus computes the rotation schedule at now. It never touches State.
func (c Credential) RotationStatus(now time.Time) RotationStatus {
	if c.State != StateActive || c.RotationDays == 0 {
		return RotationStatus{}
	}
	if c.LastRotationAt.IsZero() {
		// never rotated counts as overdue since forever
		return RotationStatus{DaysToRotation: -c.RotationDays, Due: true}
	}
	next := c.LastRotationAt.Add(time.Duration(c.RotationDays) * day)
	return RotationStatus{
		NextRotationAt: next,
		DaysToRotation: int(math.Floor(float64(next.Sub(now)) / float64(day))),
		Due:            !next.After(now),
	}
}

// RotationDueAt is the stored-field form of RotationStatus(now).Due. Storage
// backends translate the same predicate into their query language.
func (c Credential) RotationDueAt(now time.Time) bool {
	if c.State != StateActive || c.RotationDays == 0 {
		return false
	}
	for _, days := range RotationPolicies {
		if c.RotationDays != days {
			continue
		}
		if c.LastRotationAt.IsZero() {
			return true
		}
		return !c.LastRotationAt.After(now.Add(-time.Duration(days) * day))
	}
	return false
}
