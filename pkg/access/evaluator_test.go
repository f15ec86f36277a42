package access

import (
	"testing"

	"github.com/goliatone/go-access-vault/pkg/domain"
)

const actor = "alice"

type grants struct {
	owner, managerUser, managerGroup, readUser, readGroup, shared, admin, public bool
}

func build(g grants) (domain.Credential, Subject) {
	c := domain.Credential{
		Owners:  domain.StringList{"root"},
		Privacy: domain.PrivacyPrivate,
	}
	if g.public {
		c.Privacy = domain.PrivacyPublic
	}
	if g.owner {
		c.Owners = append(c.Owners, actor)
	}
	if g.managerUser {
		c.AllowedManagerUsers = domain.StringList{actor}
	}
	if g.managerGroup {
		c.AllowedManagerGroups = domain.StringList{"ops"}
	}
	if g.readUser {
		c.AllowedUsers = domain.StringList{actor}
	}
	if g.readGroup {
		c.AllowedGroups = domain.StringList{"devs"}
	}
	return c, Subject{
		Actor:  actor,
		Groups: []string{"ops", "devs", "staff"},
		Admin:  g.admin,
		Shared: g.shared,
	}
}

func TestEvaluateTruthTable(t *testing.T) {
	for mask := 0; mask < 1<<8; mask++ {
		g := grants{
			owner:        mask&1 != 0,
			managerUser:  mask&2 != 0,
			managerGroup: mask&4 != 0,
			readUser:     mask&8 != 0,
			readGroup:    mask&16 != 0,
			shared:       mask&32 != 0,
			admin:        mask&64 != 0,
			public:       mask&128 != 0,
		}
		c, s := build(g)
		d := Evaluate(c, s)

		wantManage := g.owner || g.managerUser || g.managerGroup
		wantRead := wantManage || g.readUser || g.readGroup || g.shared
		if d.CanManage != wantManage {
			t.Fatalf("%+v: manage want %v got %v", g, wantManage, d.CanManage)
		}
		if d.CanReadSecrets != wantRead {
			t.Fatalf("%+v: read want %v got %v", g, wantRead, d.CanReadSecrets)
		}
		if d.CanManage && !d.CanReadSecrets {
			t.Fatalf("%+v: manage must imply read", g)
		}
		if d.CanReadSecrets && !(d.CanManage || g.readUser || g.readGroup || g.shared) {
			t.Fatalf("%+v: read without any grant path", g)
		}
		if d.CanDisclose != (wantRead || g.admin) {
			t.Fatalf("%+v: disclose mismatch", g)
		}
		if d.CanView != (wantRead || g.admin || g.public) {
			t.Fatalf("%+v: view mismatch", g)
		}
		for _, capability := range []Capability{CapabilityView, CapabilityReadSecrets, CapabilityDisclose, CapabilityManage} {
			want := map[Capability]bool{
				CapabilityView:        d.CanView,
				CapabilityReadSecrets: d.CanReadSecrets,
				CapabilityDisclose:    d.CanDisclose,
				CapabilityManage:      d.CanManage,
			}[capability]
			if Allowed(c, s, capability) != want {
				t.Fatalf("%+v: Allowed(%s) disagrees with Evaluate", g, capability)
			}
		}
	}
}

func TestGroupsOutsideGrantsDoNothing(t *testing.T) {
	c := domain.Credential{
		Owners:               domain.StringList{"root"},
		AllowedGroups:        domain.StringList{"devs"},
		AllowedManagerGroups: domain.StringList{"ops"},
	}
	if CanReadSecrets(c, actor, []string{"sales"}) {
		t.Fatalf("unrelated group must not grant read")
	}
	if !CanReadSecrets(c, actor, []string{"devs"}) || CanManage(c, actor, []string{"devs"}) {
		t.Fatalf("read group grants read only")
	}
}

func TestEmptyActorIsDenied(t *testing.T) {
	c := domain.Credential{Owners: domain.StringList{""}, AllowedUsers: domain.StringList{""}}
	if CanManage(c, "", nil) || CanReadSecrets(c, "", nil) {
		t.Fatalf("empty actor must never match")
	}
}

func TestUnknownCapability(t *testing.T) {
	c, s := build(grants{owner: true})
	if Allowed(c, s, Capability(99)) {
		t.Fatalf("unknown capability must be denied")
	}
}
