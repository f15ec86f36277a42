package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRotationStatus(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	base := Credential{State: StateActive, RotationDays: 30}

	cases := []struct {
		name     string
		mutate   func(*Credential)
		wantDue  bool
		wantDays int
		wantNext bool
	}{
		{"overdue", func(c *Credential) { c.LastRotationAt = now.Add(-31 * day) }, true, -1, true},
		{"fresh", func(c *Credential) { c.LastRotationAt = now.Add(-1 * day) }, false, 29, true},
		{"exactly due", func(c *Credential) { c.LastRotationAt = now.Add(-30 * day) }, true, 0, true},
		{"due tomorrow", func(c *Credential) { c.LastRotationAt = now.Add(-29 * day) }, false, 1, true},
		{"never rotated", func(c *Credential) {}, true, -30, false},
		{"no policy", func(c *Credential) { c.RotationDays = 0 }, false, 0, false},
		{"revoked", func(c *Credential) { c.State = StateRevoked; c.LastRotationAt = now.Add(-90 * day) }, false, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			got := c.RotationStatus(now)
			if got.Due != tc.wantDue {
				t.Fatalf("due: want %v got %v", tc.wantDue, got.Due)
			}
			if got.DaysToRotation != tc.wantDays {
				t.Fatalf("days: want %d got %d", tc.wantDays, got.DaysToRotation)
			}
			if got.NextRotationAt.IsZero() == tc.wantNext {
				t.Fatalf("next rotation presence mismatch: %v", got.NextRotationAt)
			}
			if c.RotationDueAt(now) != got.Due {
				t.Fatalf("stored-field predicate disagrees with derived status")
			}
		})
	}
}

func TestRotationDoesNotChangeState(t *testing.T) {
	now := time.Now()
	c := Credential{State: StateActive, RotationDays: 7, LastRotationAt: now.Add(-100 * day)}
	_ = c.RotationStatus(now)
	if c.State != StateActive {
		t.Fatalf("state must stay advisory")
	}
}

func TestValidRotationDays(t *testing.T) {
	for _, d := range []int{0, 7, 15, 30, 60, 90, 180} {
		if !ValidRotationDays(d) {
			t.Fatalf("expected %d to be valid", d)
		}
	}
	for _, d := range []int{-1, 1, 14, 365, 400} {
		if ValidRotationDays(d) {
			t.Fatalf("expected %d to be rejected", d)
		}
	}
}

func TestValidationErrorMatchesSentinels(t *testing.T) {
	err := Invalid("owners", ErrOwnersRequired)
	if !errors.Is(err, ErrValidation) || !errors.Is(err, ErrOwnersRequired) {
		t.Fatalf("validation error should match both sentinels")
	}
	if d, ok := RetryAfter(&RateLimitError{RetryAfter: 5 * time.Second}); !ok || d != 5*time.Second {
		t.Fatalf("expected retry hint")
	}
}
