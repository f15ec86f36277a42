package identity

import (
	"context"
	"slices"
	"sync"
)

// Directory is the host application's user and group provider. Vault
// services never cache its answers beyond a single evaluation.
type Directory interface {
	Groups(ctx context.Context, actor string) ([]string, error)
	IsAdmin(ctx context.Context, actor string) (bool, error)
}

// Static is a Directory backed by fixed maps, used by tests and the CLI.
type Static struct {
	mu      sync.RWMutex
	members map[string][]string
	admins  map[string]bool
}

var _ Directory = (*Static)(nil)

func NewStatic() *Static {
	return &Static{
		members: make(map[string][]string),
		admins:  make(map[string]bool),
	}
}

// SetGroups replaces the memberships of actor.
func (s *Static) SetGroups(actor string, groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[actor] = slices.Clone(groups)
}

// SetAdmin toggles the administrator role for actor.
func (s *Static) SetAdmin(actor string, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if admin {
		s.admins[actor] = true
		return
	}
	delete(s.admins, actor)
}

func (s *Static) Groups(_ context.Context, actor string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.members[actor]), nil
}

func (s *Static) IsAdmin(_ context.Context, actor string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admins[actor], nil
}
