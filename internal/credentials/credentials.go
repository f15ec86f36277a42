package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-access-vault/pkg/access"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
	"github.com/google/uuid"
)

// Input carries the writable fields of a new credential. State defaults to
// active.
type Input struct {
	Name                 string              `json:"name,omitempty"`
	Description          string              `json:"description,omitempty"`
	AccessType           domain.AccessType   `json:"access_type,omitempty"`
	Criticality          domain.Criticality  `json:"criticality,omitempty"`
	BusinessUnit         domain.BusinessUnit `json:"business_unit,omitempty"`
	Environment          domain.Environment  `json:"environment,omitempty"`
	Privacy              domain.Privacy      `json:"privacy,omitempty"`
	State                domain.State        `json:"state,omitempty"`
	RotationDays         int                 `json:"rotation_days,omitempty"`
	Owners               []string            `json:"owners,omitempty"`
	AllowedUsers         []string            `json:"allowed_users,omitempty"`
	AllowedGroups        []string            `json:"allowed_groups,omitempty"`
	AllowedManagerUsers  []string            `json:"allowed_manager_users,omitempty"`
	AllowedManagerGroups []string            `json:"allowed_manager_groups,omitempty"`
	Metadata             map[string]any      `json:"metadata,omitempty"`
}

// Patch updates selected fields; nil pointers are left untouched.
type Patch struct {
	// Version, when non-zero, must equal the stored version.
	Version int64 `json:"version,omitempty"`

	Name                 *string              `json:"name,omitempty"`
	Description          *string              `json:"description,omitempty"`
	AccessType           *domain.AccessType   `json:"access_type,omitempty"`
	Criticality          *domain.Criticality  `json:"criticality,omitempty"`
	BusinessUnit         *domain.BusinessUnit `json:"business_unit,omitempty"`
	Environment          *domain.Environment  `json:"environment,omitempty"`
	Privacy              *domain.Privacy      `json:"privacy,omitempty"`
	State                *domain.State        `json:"state,omitempty"`
	RotationDays         *int                 `json:"rotation_days,omitempty"`
	Owners               *[]string            `json:"owners,omitempty"`
	AllowedUsers         *[]string            `json:"allowed_users,omitempty"`
	AllowedGroups        *[]string            `json:"allowed_groups,omitempty"`
	AllowedManagerUsers  *[]string            `json:"allowed_manager_users,omitempty"`
	AllowedManagerGroups *[]string            `json:"allowed_manager_groups,omitempty"`
	Metadata             map[string]any       `json:"metadata,omitempty"`
}

// Detail is the single-credential read model.
type Detail struct {
	Credential  domain.Credential     `json:"credential"`
	Rotation    domain.RotationStatus `json:"rotation"`
	Permissions access.Decision       `json:"permissions"`
	Secrets     []domain.SecretView   `json:"secrets"`
}

// Create validates and persists a credential. Any identified actor may create;
// the owners list decides who manages it afterwards.
func (s *Service) Create(ctx context.Context, actor string, in Input) (*domain.Credential, error) {
	if actor == "" {
		return nil, domain.ErrAccessDenied
	}
	cred := &domain.Credential{
		Name:                 in.Name,
		Description:          in.Description,
		AccessType:           in.AccessType,
		Criticality:          in.Criticality,
		BusinessUnit:         in.BusinessUnit,
		Environment:          in.Environment,
		Privacy:              in.Privacy,
		State:                in.State,
		RotationDays:         in.RotationDays,
		Owners:               domain.StringList(in.Owners),
		AllowedUsers:         domain.StringList(in.AllowedUsers),
		AllowedGroups:        domain.StringList(in.AllowedGroups),
		AllowedManagerUsers:  domain.StringList(in.AllowedManagerUsers),
		AllowedManagerGroups: domain.StringList(in.AllowedManagerGroups),
		Metadata:             domain.JSONMap(in.Metadata),
	}
	if cred.State == "" {
		cred.State = domain.StateActive
	}
	if err := validate(cred); err != nil {
		s.count(pkgmetrics.OpCreate, err)
		return nil, err
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		err = mapWriteError(err)
		s.count(pkgmetrics.OpCreate, err)
		return nil, err
	}

	s.record(ctx, cred.ID, actor, domain.ActionCreate, "Credential created")
	s.count(pkgmetrics.OpCreate, nil)
	s.logger.Info("credential created",
		logger.Field{Key: "credential_id", Value: cred.ID.String()},
		logger.Field{Key: "environment", Value: string(cred.Environment)},
		logger.Field{Key: "actor", Value: actor},
	)
	return cred, nil
}

// Update applies patch under manage permission. Permission and version are
// re-checked against the row that is actually written.
func (s *Service) Update(ctx context.Context, actor string, id uuid.UUID, patch Patch) (*domain.Credential, error) {
	cred, err := s.mutate(ctx, id, func(c *domain.Credential) error {
		if patch.Version != 0 && patch.Version != c.Version {
			return domain.ErrConflict
		}
		if _, err := s.authorizer.Require(ctx, *c, actor, access.CapabilityManage); err != nil {
			return err
		}
		patch.apply(c)
		return validate(c)
	})
	s.count(pkgmetrics.OpUpdate, err)
	if err != nil {
		return nil, err
	}

	s.record(ctx, cred.ID, actor, domain.ActionUpdate, "Credential updated")
	return cred, nil
}

func (p Patch) apply(c *domain.Credential) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.AccessType != nil {
		c.AccessType = *p.AccessType
	}
	if p.Criticality != nil {
		c.Criticality = *p.Criticality
	}
	if p.BusinessUnit != nil {
		c.BusinessUnit = *p.BusinessUnit
	}
	if p.Environment != nil {
		c.Environment = *p.Environment
	}
	if p.Privacy != nil {
		c.Privacy = *p.Privacy
	}
	if p.State != nil {
		c.State = *p.State
	}
	if p.RotationDays != nil {
		c.RotationDays = *p.RotationDays
	}
	setList := func(dst *domain.StringList, src *[]string) {
		if src != nil {
			*dst = domain.StringList(append([]string(nil), (*src)...))
		}
	}
	setList(&c.Owners, p.Owners)
	setList(&c.AllowedUsers, p.AllowedUsers)
	setList(&c.AllowedGroups, p.AllowedGroups)
	setList(&c.AllowedManagerUsers, p.AllowedManagerUsers)
	setList(&c.AllowedManagerGroups, p.AllowedManagerGroups)
	if p.Metadata != nil {
		c.Metadata = domain.JSONMap(p.Metadata)
	}
}

// Delete removes the credential with its secrets, shares and log entries.
func (s *Service) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, _, err := s.loadAuthorized(ctx, actor, id, access.CapabilityManage); err != nil {
			return err
		}
		if err := s.secrets.DeleteByCredential(ctx, id); err != nil {
			return fmt.Errorf("credentials: delete secrets: %w", err)
		}
		if s.shares != nil {
			if err := s.shares.DeleteByCredential(ctx, id); err != nil {
				return fmt.Errorf("credentials: delete shares: %w", err)
			}
		}
		if err := s.audit.Purge(ctx, id); err != nil {
			return fmt.Errorf("credentials: delete logs: %w", err)
		}
		return s.credentials.Delete(ctx, id)
	})
	s.count(pkgmetrics.OpDelete, err)
	if err != nil {
		return err
	}
	s.logger.Info("credential deleted",
		logger.Field{Key: "credential_id", Value: id.String()},
		logger.Field{Key: "actor", Value: actor},
	)
	return nil
}

// Get returns the credential when actor can view it.
func (s *Service) Get(ctx context.Context, actor string, id uuid.UUID) (*Detail, error) {
	cred, d, err := s.loadAuthorized(ctx, actor, id, access.CapabilityView)
	if err != nil {
		return nil, err
	}
	secrets, err := s.secrets.ListByCredential(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("credentials: list secrets: %w", err)
	}
	views := make([]domain.SecretView, 0, len(secrets))
	for _, sec := range secrets {
		views = append(views, sec.View())
	}
	return &Detail{
		Credential:  *cred,
		Rotation:    cred.RotationStatus(s.now()),
		Permissions: d,
		Secrets:     views,
	}, nil
}

// List returns the credentials actor can view. Visibility depends on the
// actor, so pagination is applied after filtering.
func (s *Service) List(ctx context.Context, actor string, filter store.CredentialFilter, opts store.ListOptions) (store.ListResult[Summary], error) {
	visible, err := s.visible(ctx, actor, filter)
	if err != nil {
		return store.ListResult[Summary]{}, err
	}
	now := s.now()
	total := len(visible)
	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}
	items := make([]Summary, 0, end-start)
	for _, c := range visible[start:end] {
		items = append(items, summarize(c, now))
	}
	return store.ListResult[Summary]{Items: items, Total: total}, nil
}

// ListRotationDue returns visible credentials whose rotation is due now,
// using the stored-field predicate.
func (s *Service) ListRotationDue(ctx context.Context, actor string) ([]Summary, error) {
	now := s.now()
	visible, err := s.visible(ctx, actor, store.CredentialFilter{RotationDueAt: now})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		if a.Criticality.Rank() != b.Criticality.Rank() {
			return a.Criticality.Rank() > b.Criticality.Rank()
		}
		return a.Name < b.Name
	})
	out := make([]Summary, 0, len(visible))
	for _, c := range visible {
		out = append(out, summarize(c, now))
	}
	return out, nil
}

// RotationStatus reports the derived rotation state. It never changes State.
func (s *Service) RotationStatus(ctx context.Context, actor string, id uuid.UUID) (domain.RotationStatus, error) {
	cred, _, err := s.loadAuthorized(ctx, actor, id, access.CapabilityView)
	if err != nil {
		return domain.RotationStatus{}, err
	}
	return cred.RotationStatus(s.now()), nil
}

// Logs lists audit entries newest first. Managers and administrators only.
func (s *Service) Logs(ctx context.Context, actor string, id uuid.UUID, opts store.ListOptions) (store.ListResult[domain.LogEntry], error) {
	cred, err := s.load(ctx, id)
	if err != nil {
		return store.ListResult[domain.LogEntry]{}, err
	}
	d, subject, err := s.authorizer.Decide(ctx, *cred, actor)
	if err != nil {
		return store.ListResult[domain.LogEntry]{}, err
	}
	if !d.CanManage && !subject.Admin {
		return store.ListResult[domain.LogEntry]{}, domain.ErrAccessDenied
	}
	return s.audit.List(ctx, id, opts)
}

func (s *Service) visible(ctx context.Context, actor string, filter store.CredentialFilter) ([]domain.Credential, error) {
	res, err := s.credentials.Find(ctx, filter, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("credentials: find: %w", err)
	}
	out := make([]domain.Credential, 0, len(res.Items))
	for _, c := range res.Items {
		d, _, err := s.authorizer.Decide(ctx, c, actor)
		if err != nil {
			return nil, err
		}
		if d.CanView {
			out = append(out, c)
		}
	}
	return out, nil
}

// IsNotFound reports whether err means the credential or secret is gone.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
