package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

// GrantLookup finds a usable share for a grantee.
type GrantLookup interface {
	FindUsable(ctx context.Context, credentialID uuid.UUID, grantee string, now time.Time) (*domain.Share, error)
}

// Authorizer resolves the actor's groups, admin flag and shares on every call
// and feeds them to Evaluate.
type Authorizer struct {
	directory identity.Directory
	grants    GrantLookup
	now       func() time.Time
}

// NewAuthorizer wires the identity directory and optional share lookup.
func NewAuthorizer(directory identity.Directory, grants GrantLookup, now func() time.Time) *Authorizer {
	if directory == nil {
		directory = identity.NewStatic()
	}
	if now == nil {
		now = time.Now
	}
	return &Authorizer{directory: directory, grants: grants, now: now}
}

// Subject loads the current memberships of actor relative to c.
func (a *Authorizer) Subject(ctx context.Context, c domain.Credential, actor string) (Subject, error) {
	s := Subject{Actor: actor}
	if actor == "" {
		return s, nil
	}
	groups, err := a.directory.Groups(ctx, actor)
	if err != nil {
		return s, fmt.Errorf("access: resolve groups: %w", err)
	}
	admin, err := a.directory.IsAdmin(ctx, actor)
	if err != nil {
		return s, fmt.Errorf("access: resolve admin: %w", err)
	}
	s.Groups = groups
	s.Admin = admin

	if a.grants != nil && c.ID != uuid.Nil {
		_, err := a.grants.FindUsable(ctx, c.ID, actor, a.now())
		switch {
		case err == nil:
			s.Shared = true
		case errors.Is(err, store.ErrNotFound):
		default:
			return s, fmt.Errorf("access: resolve shares: %w", err)
		}
	}
	return s, nil
}

// Decide evaluates every capability for actor on c.
func (a *Authorizer) Decide(ctx context.Context, c domain.Credential, actor string) (Decision, Subject, error) {
	s, err := a.Subject(ctx, c, actor)
	if err != nil {
		return Decision{}, s, err
	}
	return Evaluate(c, s), s, nil
}

// Require fails with domain.ErrAccessDenied unless capability is granted.
func (a *Authorizer) Require(ctx context.Context, c domain.Credential, actor string, capability Capability) (Decision, error) {
	d, s, err := a.Decide(ctx, c, actor)
	if err != nil {
		return d, err
	}
	if !Allowed(c, s, capability) {
		return d, domain.ErrAccessDenied
	}
	return d, nil
}
