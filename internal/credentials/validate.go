package credentials

import (
	"strings"

	"github.com/goliatone/go-access-vault/pkg/domain"
)

// validate enforces the write invariants shared by create and update.
func validate(c *domain.Credential) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.Invalid("name", domain.ErrNameRequired)
	}
	if !c.AccessType.Valid() {
		return domain.Invalid("access_type", domain.ErrInvalidEnum)
	}
	if !c.Criticality.Valid() {
		return domain.Invalid("criticality", domain.ErrInvalidEnum)
	}
	if !c.BusinessUnit.Valid() {
		return domain.Invalid("business_unit", domain.ErrInvalidEnum)
	}
	if !c.Environment.Valid() {
		return domain.Invalid("environment", domain.ErrInvalidEnum)
	}
	if !c.Privacy.Valid() {
		return domain.Invalid("privacy", domain.ErrInvalidEnum)
	}
	if !c.State.Valid() {
		return domain.Invalid("state", domain.ErrInvalidEnum)
	}
	if !domain.ValidRotationDays(c.RotationDays) {
		return domain.Invalid("rotation_days", domain.ErrInvalidRotation)
	}

	c.Owners = c.Owners.Normalize()
	c.AllowedUsers = c.AllowedUsers.Normalize()
	c.AllowedGroups = c.AllowedGroups.Normalize()
	c.AllowedManagerUsers = c.AllowedManagerUsers.Normalize()
	c.AllowedManagerGroups = c.AllowedManagerGroups.Normalize()
	if len(c.Owners) == 0 {
		return domain.Invalid("owners", domain.ErrOwnersRequired)
	}
	return nil
}

func validateSecret(s *domain.Secret) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return domain.Invalid("name", domain.ErrNameRequired)
	}
	if !s.SecretType.Valid() {
		return domain.Invalid("secret_type", domain.ErrInvalidEnum)
	}
	return nil
}
