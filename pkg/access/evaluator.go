// Package access evaluates what an actor may do with a credential. Every
// decision is computed from the credential row and the actor's current group
// memberships; nothing is cached between calls.
package access

import "github.com/goliatone/go-access-vault/pkg/domain"

// Capability is a request the evaluator can answer.
type Capability int

const (
	// CapabilityView allows seeing the record and whether a secret is set.
	CapabilityView Capability = iota + 1
	// CapabilityReadSecrets is the read-secrets permission tier.
	CapabilityReadSecrets
	// CapabilityDisclose gates plaintext disclosure.
	CapabilityDisclose
	// CapabilityManage allows edit, rotate and share.
	CapabilityManage
)

func (c Capability) String() string {
	switch c {
	case CapabilityView:
		return "view"
	case CapabilityReadSecrets:
		return "read_secrets"
	case CapabilityDisclose:
		return "disclose"
	case CapabilityManage:
		return "manage"
	}
	return "unknown"
}

// Subject is the actor being evaluated.
type Subject struct {
	Actor  string
	Groups []string
	Admin  bool
	// Shared is true when the actor holds a usable share on the credential.
	Shared bool
}

// Decision holds every capability for one (credential, subject) pair.
type Decision struct {
	CanView        bool
	CanReadSecrets bool
	CanDisclose    bool
	CanManage      bool
}

// Evaluate computes the full decision.
func Evaluate(c domain.Credential, s Subject) Decision {
	manage := CanManage(c, s.Actor, s.Groups)
	read := manage || s.Shared || explicitRead(c, s.Actor, s.Groups)
	return Decision{
		CanView:        s.Admin || c.Privacy == domain.PrivacyPublic || read,
		CanReadSecrets: read,
		CanDisclose:    read || s.Admin,
		CanManage:      manage,
	}
}

// Allowed answers a single capability request.
func Allowed(c domain.Credential, s Subject, capability Capability) bool {
	d := Evaluate(c, s)
	switch capability {
	case CapabilityView:
		return d.CanView
	case CapabilityReadSecrets:
		return d.CanReadSecrets
	case CapabilityDisclose:
		return d.CanDisclose
	case CapabilityManage:
		return d.CanManage
	}
	return false
}

// CanManage reports owner, manager user or manager group membership.
func CanManage(c domain.Credential, actor string, groups []string) bool {
	if actor == "" {
		return false
	}
	return c.Owners.Contains(actor) ||
		c.AllowedManagerUsers.Contains(actor) ||
		c.AllowedManagerGroups.Intersects(groups)
}

// CanReadSecrets reports manage or an explicit read grant. Shares are not
// considered here; use Evaluate with Subject.Shared for that.
func CanReadSecrets(c domain.Credential, actor string, groups []string) bool {
	return CanManage(c, actor, groups) || explicitRead(c, actor, groups)
}

func explicitRead(c domain.Credential, actor string, groups []string) bool {
	if actor == "" {
		return false
	}
	return c.AllowedUsers.Contains(actor) || c.AllowedGroups.Intersects(groups)
}
