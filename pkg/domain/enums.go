package domain

import "slices"

// AccessType describes the kind of secret a credential or secret holds.
type AccessType string

const (
	AccessUserPassword AccessType = "user_password"
	AccessAPIKey       AccessType = "api_key"
	AccessToken        AccessType = "token"
	AccessCertificate  AccessType = "certificate"
	AccessSSHKey       AccessType = "ssh_key"
	AccessMulti        AccessType = "multi"
)

func (t AccessType) Valid() bool {
	switch t {
	case AccessUserPassword, AccessAPIKey, AccessToken, AccessCertificate, AccessSSHKey, AccessMulti:
		return true
	}
	return false
}

// Criticality ranks credentials; higher ranks sort first in listings.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

func (c Criticality) Valid() bool {
	return c.Rank() > 0
}

// Rank orders criticality levels, 0 for unknown values.
func (c Criticality) Rank() int {
	switch c {
	case CriticalityLow:
		return 1
	case CriticalityMedium:
		return 2
	case CriticalityHigh:
		return 3
	case CriticalityCritical:
		return 4
	}
	return 0
}

type BusinessUnit string

const (
	BusinessUnitPlatform   BusinessUnit = "platform"
	BusinessUnitB2B        BusinessUnit = "b2b"
	BusinessUnitB2C        BusinessUnit = "b2c"
	BusinessUnitQATrust    BusinessUnit = "qa_trust"
	BusinessUnitManagement BusinessUnit = "management"
	BusinessUnitBoard      BusinessUnit = "board"
)

func (b BusinessUnit) Valid() bool {
	switch b {
	case BusinessUnitPlatform, BusinessUnitB2B, BusinessUnitB2C, BusinessUnitQATrust, BusinessUnitManagement, BusinessUnitBoard:
		return true
	}
	return false
}

type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
)

func (e Environment) Valid() bool {
	switch e {
	case EnvironmentProduction, EnvironmentStaging, EnvironmentDevelopment:
		return true
	}
	return false
}

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

func (p Privacy) Valid() bool {
	return p == PrivacyPublic || p == PrivacyPrivate
}

type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

func (s State) Valid() bool {
	return s == StateActive || s == StateExpired || s == StateRevoked
}

// SystemActor attributes scheduled work such as share expiry and reminders.
const SystemActor = "system"

// Action tags audit log entries.
type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionRotate      Action = "rotate"
	ActionCopy        Action = "copy"
	ActionShareGrant  Action = "share_grant"
	ActionShareRevoke Action = "share_revoke"
	ActionShareExpire Action = "share_expire"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionRotate, ActionCopy, ActionShareGrant, ActionShareRevoke, ActionShareExpire:
		return true
	}
	return false
}

// RotationPolicies lists the accepted rotation_days values.
var RotationPolicies = []int{7, 15, 30, 60, 90, 180}

// ValidRotationDays reports whether days is an accepted policy. Zero means no policy.
func ValidRotationDays(days int) bool {
	if days == 0 {
		return true
	}
	if days < 1 || days > 365 {
		return false
	}
	return slices.Contains(RotationPolicies, days)
}
