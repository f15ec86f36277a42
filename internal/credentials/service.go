package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-access-vault/internal/audit"
	"github.com/goliatone/go-access-vault/pkg/access"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/identity"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/metrics"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
	"github.com/goliatone/go-access-vault/pkg/ratelimit"
	"github.com/goliatone/go-access-vault/pkg/secrets"
	"github.com/google/uuid"
)

// maxConflictRetries bounds re-reads when a system stamp loses a version race.
const maxConflictRetries = 3

// Dependencies wires repositories and collaborators into the service.
type Dependencies struct {
	Credentials store.CredentialRepository
	Secrets     store.SecretRepository
	// Shares is optional; when set, usable shares grant read access.
	Shares   store.ShareRepository
	Audit    *audit.Service
	Engine   *secrets.Engine
	Limiter  *ratelimit.Limiter
	Identity identity.Directory
	Tx       store.TransactionManager
	Logger   logger.Logger
	Metrics  metrics.Collector
	Clock    func() time.Time
	// Location decides the calendar date reported by Dashboard.
	Location *time.Location
}

// Service owns the credential aggregate: CRUD, rotation, secrets and disclosure.
type Service struct {
	credentials store.CredentialRepository
	secrets     store.SecretRepository
	shares      store.ShareRepository
	audit       *audit.Service
	engine      *secrets.Engine
	limiter     *ratelimit.Limiter
	authorizer  *access.Authorizer
	tx          store.TransactionManager
	logger      logger.Logger
	metrics     metrics.Collector
	now         func() time.Time
	loc         *time.Location
}

var (
	errCredentialRepoRequired = errors.New("credentials: credential repository is required")
	errSecretRepoRequired     = errors.New("credentials: secret repository is required")
	errAuditRequired          = errors.New("credentials: audit service is required")
	errEngineRequired         = errors.New("credentials: crypto engine is required")
	errLimiterRequired        = errors.New("credentials: rate limiter is required")
)

// NewService constructs the credential service.
func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.Credentials == nil:
		return nil, errCredentialRepoRequired
	case deps.Secrets == nil:
		return nil, errSecretRepoRequired
	case deps.Audit == nil:
		return nil, errAuditRequired
	case deps.Engine == nil:
		return nil, errEngineRequired
	case deps.Limiter == nil:
		return nil, errLimiterRequired
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Tx == nil {
		deps.Tx = &store.NopTransactionManager{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	var grants access.GrantLookup
	if deps.Shares != nil {
		grants = deps.Shares
	}

	return &Service{
		credentials: deps.Credentials,
		secrets:     deps.Secrets,
		shares:      deps.Shares,
		audit:       deps.Audit,
		engine:      deps.Engine,
		limiter:     deps.Limiter,
		authorizer:  access.NewAuthorizer(deps.Identity, grants, deps.Clock),
		tx:          deps.Tx,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		loc:         deps.Location,
	}, nil
}

// Authorizer exposes the evaluator wiring so sibling services gate the same way.
func (s *Service) Authorizer() *access.Authorizer {
	return s.authorizer
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	cred, err := s.credentials.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("credentials: load %s: %w", id, err)
	}
	return cred, nil
}

// loadAuthorized loads the credential and checks capability in one step.
func (s *Service) loadAuthorized(ctx context.Context, actor string, id uuid.UUID, capability access.Capability) (*domain.Credential, access.Decision, error) {
	cred, err := s.load(ctx, id)
	if err != nil {
		return nil, access.Decision{}, err
	}
	d, err := s.authorizer.Require(ctx, *cred, actor, capability)
	if err != nil {
		return nil, d, err
	}
	return cred, d, nil
}

// mutate re-reads and retries fn when a concurrent writer bumped the version.
// fn runs against the fresh row on every attempt, so checks inside it are
// never stale.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Credential) error) (*domain.Credential, error) {
	cred, err := store.UpdateCredential(ctx, s.credentials, id, maxConflictRetries, fn)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return cred, nil
}

// record appends an audit entry after the primary write committed. Failures
// are logged by the audit service and do not fail the caller.
func (s *Service) record(ctx context.Context, credentialID uuid.UUID, actor string, action domain.Action, detail string) {
	_, _ = s.audit.Record(ctx, audit.Entry{
		CredentialID: credentialID,
		Actor:        actor,
		Action:       action,
		Detail:       detail,
	})
}

func (s *Service) count(op string, err error) {
	switch {
	case err == nil:
		s.metrics.Record(op, nil)
	case errors.Is(err, domain.ErrAccessDenied):
		s.metrics.Record(op, pkgmetrics.Result(pkgmetrics.ResultDenied))
	case errors.Is(err, domain.ErrRateLimited):
		s.metrics.Record(op, pkgmetrics.Result(pkgmetrics.ResultLimited))
	default:
		s.metrics.Record(op, pkgmetrics.Result(pkgmetrics.ResultError))
	}
}

func mapWriteError(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return domain.Invalid("name", domain.ErrDuplicateName)
	}
	return err
}

func auditCopy(credentialID uuid.UUID, actor, secretName string) audit.Entry {
	return audit.Entry{
		CredentialID: credentialID,
		Actor:        actor,
		Action:       domain.ActionCopy,
		Detail:       fmt.Sprintf("Credential copied (%s)", secretName),
	}
}
