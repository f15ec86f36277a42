package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/google/uuid"
)

type shareLookup struct {
	grantee string
	err     error
}

func (s shareLookup) FindUsable(_ context.Context, _ uuid.UUID, grantee string, _ time.Time) (*domain.Share, error) {
	if s.err != nil {
		return nil, s.err
	}
	if grantee == s.grantee {
		return &domain.Share{Grantee: grantee, Active: true}, nil
	}
	return nil, store.ErrNotFound
}

func TestAuthorizerResolvesMembershipsPerCall(t *testing.T) {
	dir := identity.NewStatic()
	auth := NewAuthorizer(dir, nil, nil)
	cred := domain.Credential{Privacy: domain.PrivacyPrivate, Owners: domain.StringList{"alice"}, AllowedManagerGroups: domain.StringList{"ops"}}
	cred.ID = uuid.New()
	ctx := context.Background()

	if _, err := auth.Require(ctx, cred, "bob", CapabilityManage); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected denial before group grant, got %v", err)
	}
	dir.SetGroups("bob", "ops")
	if _, err := auth.Require(ctx, cred, "bob", CapabilityManage); err != nil {
		t.Fatalf("expected manage after joining ops, got %v", err)
	}
	dir.SetGroups("bob")
	if _, err := auth.Require(ctx, cred, "bob", CapabilityManage); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected denial after leaving ops, got %v", err)
	}
}

func TestAuthorizerCountsUsableShares(t *testing.T) {
	auth := NewAuthorizer(identity.NewStatic(), shareLookup{grantee: "carol"}, nil)
	cred := domain.Credential{Privacy: domain.PrivacyPrivate, Owners: domain.StringList{"alice"}}
	cred.ID = uuid.New()

	d, s, err := auth.Decide(context.Background(), cred, "carol")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !s.Shared || !d.CanReadSecrets || !d.CanDisclose || d.CanManage {
		t.Fatalf("unexpected decision for share grantee: %+v", d)
	}
}

func TestAuthorizerAdminDisclosure(t *testing.T) {
	dir := identity.NewStatic()
	dir.SetAdmin("root", true)
	auth := NewAuthorizer(dir, nil, nil)
	cred := domain.Credential{Privacy: domain.PrivacyPrivate, Owners: domain.StringList{"alice"}}

	d, err := auth.Require(context.Background(), cred, "root", CapabilityDisclose)
	if err != nil {
		t.Fatalf("admin disclose: %v", err)
	}
	if d.CanManage || d.CanReadSecrets || !d.CanView {
		t.Fatalf("admin must not gain manage or read tiers: %+v", d)
	}
}

func TestAuthorizerPropagatesLookupErrors(t *testing.T) {
	boom := errors.New("db down")
	auth := NewAuthorizer(identity.NewStatic(), shareLookup{err: boom}, nil)
	cred := domain.Credential{Owners: domain.StringList{"alice"}}
	cred.ID = uuid.New()
	if _, err := auth.Require(context.Background(), cred, "bob", CapabilityView); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestAuthorizerEmptyActor(t *testing.T) {
	auth := NewAuthorizer(nil, nil, nil)
	cred := domain.Credential{Privacy: domain.PrivacyPublic, Owners: domain.StringList{"alice"}}
	d, _, err := auth.Decide(context.Background(), cred, "")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.CanReadSecrets || d.CanManage {
		t.Fatalf("anonymous actor must not read or manage: %+v", d)
	}
}
