package shares

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access-vault/internal/audit"
	"github.com/goliatone/go-access-vault/pkg/access"
	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/metrics"
	"github.com/goliatone/go-access-vault/pkg/interfaces/notify"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
	"github.com/google/uuid"
)

const (
	defaultSweepBatch = 500
	noticeTitle       = "Access Vault - Access shared"
	logTimeLayout     = "2006-01-02 15:04:05"
	noticeTimeLayout  = "02/01/2006 15:04"
)

var (
	errCredentialRepoRequired = errors.New("shares: credential repository is required")
	errShareRepoRequired      = errors.New("shares: share repository is required")
	errAuditRequired          = errors.New("shares: audit service is required")
	errAuthorizerRequired     = errors.New("shares: authorizer is required")
)

// Dependencies wires the share ledger.
type Dependencies struct {
	Credentials store.CredentialRepository
	Shares      store.ShareRepository
	Audit       *audit.Service
	Authorizer  *access.Authorizer
	Notifier    notify.Notifier
	Tx          store.TransactionManager
	Logger      logger.Logger
	Metrics     metrics.Collector
	Clock       func() time.Time
	Config      config.SharesConfig
	// Location formats the expiry shown to grantees.
	Location *time.Location
}

// Service grants, revokes and expires temporary read access.
type Service struct {
	credentials store.CredentialRepository
	shares      store.ShareRepository
	audit       *audit.Service
	authorizer  *access.Authorizer
	notifier    notify.Notifier
	tx          store.TransactionManager
	logger      logger.Logger
	metrics     metrics.Collector
	now         func() time.Time
	cfg         config.SharesConfig
	loc         *time.Location
}

// NewService constructs the share ledger.
func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.Credentials == nil:
		return nil, errCredentialRepoRequired
	case deps.Shares == nil:
		return nil, errShareRepoRequired
	case deps.Audit == nil:
		return nil, errAuditRequired
	case deps.Authorizer == nil:
		return nil, errAuthorizerRequired
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Tx == nil {
		deps.Tx = &store.NopTransactionManager{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Config.SweepBatchSize <= 0 {
		deps.Config.SweepBatchSize = defaultSweepBatch
	}
	return &Service{
		credentials: deps.Credentials,
		shares:      deps.Shares,
		audit:       deps.Audit,
		authorizer:  deps.Authorizer,
		notifier:    deps.Notifier,
		tx:          deps.Tx,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		cfg:         deps.Config,
		loc:         deps.Location,
	}, nil
}

// Grant gives grantee read access to the credential until expiresAt. The
// grantee is notified after the share is stored; delivery failures are only
// logged.
func (s *Service) Grant(ctx context.Context, actor string, credentialID uuid.UUID, grantee string, expiresAt time.Time) (*domain.Share, error) {
	share, cred, err := s.grant(ctx, actor, credentialID, grantee, expiresAt)
	s.count(pkgmetrics.OpShareGrant, err)
	if err != nil {
		return nil, err
	}

	s.record(ctx, share, actor, domain.ActionShareGrant,
		fmt.Sprintf("Temporary access granted to %s until %s", share.Grantee, share.ExpiresAt.UTC().Format(logTimeLayout)))
	s.logger.Info("share granted",
		logger.Field{Key: "credential_id", Value: cred.ID.String()},
		logger.Field{Key: "share_id", Value: share.ID.String()},
		logger.Field{Key: "grantee", Value: share.Grantee},
		logger.Field{Key: "actor", Value: actor},
	)
	s.notifyGrantee(ctx, cred, share)
	return share, nil
}

func (s *Service) grant(ctx context.Context, actor string, credentialID uuid.UUID, grantee string, expiresAt time.Time) (*domain.Share, *domain.Credential, error) {
	grantee = strings.TrimSpace(grantee)
	if grantee == "" {
		return nil, nil, domain.Invalid("grantee", domain.ErrEmptyInput)
	}
	now := s.now()
	if !expiresAt.After(now) {
		return nil, nil, domain.Invalid("expires_at", domain.ErrInvalidExpiry)
	}
	if s.cfg.MaxDuration > 0 && expiresAt.Sub(now) > s.cfg.MaxDuration {
		return nil, nil, domain.Invalid("expires_at", domain.ErrInvalidExpiry)
	}
	if grantee == actor {
		return nil, nil, domain.Invalid("grantee", domain.ErrSelfShare)
	}

	var (
		share *domain.Share
		cred  *domain.Credential
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		cred, err = s.credential(ctx, credentialID)
		if err != nil {
			return err
		}
		if _, err := s.authorizer.Require(ctx, *cred, actor, access.CapabilityManage); err != nil {
			return err
		}
		share = &domain.Share{
			CredentialID: cred.ID,
			Grantee:      grantee,
			ExpiresAt:    expiresAt.UTC(),
			Active:       true,
			CreatedBy:    actor,
		}
		if err := s.shares.Create(ctx, share); err != nil {
			return fmt.Errorf("shares: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return share, cred, nil
}

// Revoke deactivates a share. Revoking an inactive share is a no-op and
// appends nothing.
func (s *Service) Revoke(ctx context.Context, actor string, shareID uuid.UUID) error {
	share, changed, err := s.revoke(ctx, actor, shareID)
	s.count(pkgmetrics.OpShareRevoke, err)
	if err != nil || !changed {
		return err
	}
	s.record(ctx, share, actor, domain.ActionShareRevoke,
		fmt.Sprintf("Temporary access revoked for %s", share.Grantee))
	s.logger.Info("share revoked",
		logger.Field{Key: "credential_id", Value: share.CredentialID.String()},
		logger.Field{Key: "share_id", Value: share.ID.String()},
		logger.Field{Key: "actor", Value: actor},
	)
	return nil
}

func (s *Service) revoke(ctx context.Context, actor string, shareID uuid.UUID) (*domain.Share, bool, error) {
	share, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		return nil, false, fmt.Errorf("shares: load %s: %w", shareID, err)
	}
	cred, err := s.credential(ctx, share.CredentialID)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.authorizer.Require(ctx, *cred, actor, access.CapabilityManage); err != nil {
		return nil, false, err
	}
	changed, err := s.shares.Deactivate(ctx, share.ID, s.now().UTC(), actor)
	if err != nil {
		return nil, false, fmt.Errorf("shares: deactivate %s: %w", share.ID, err)
	}
	return share, changed, nil
}

// List returns every share of a credential, active or not. Managers only.
func (s *Service) List(ctx context.Context, actor string, credentialID uuid.UUID) ([]domain.Share, error) {
	cred, err := s.credential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Require(ctx, *cred, actor, access.CapabilityManage); err != nil {
		return nil, err
	}
	return s.shares.ListByCredential(ctx, credentialID)
}

func (s *Service) credential(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	cred, err := s.credentials.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("shares: load credential %s: %w", id, err)
	}
	return cred, nil
}

func (s *Service) notifyGrantee(ctx context.Context, cred *domain.Credential, share *domain.Share) {
	msg := fmt.Sprintf("You received temporary access to credential '%s' until %s.",
		cred.Name, share.ExpiresAt.In(s.loc).Format(noticeTimeLayout))
	notice := notify.Notice{
		Kind:         notify.KindShareGranted,
		Title:        noticeTitle,
		Body:         fmt.Sprintf("%s\n\nGranted by: %s", msg, share.CreatedBy),
		CredentialID: cred.ID.String(),
	}
	if err := s.notifier.Notify(ctx, share.Grantee, notice); err != nil {
		s.logger.Warn("share notification failed",
			logger.Field{Key: "credential_id", Value: cred.ID.String()},
			logger.Field{Key: "grantee", Value: share.Grantee},
			logger.Err(err),
		)
	}
}

func (s *Service) record(ctx context.Context, share *domain.Share, actor string, action domain.Action, detail string) {
	_, _ = s.audit.Record(ctx, audit.Entry{
		CredentialID: share.CredentialID,
		Actor:        actor,
		Action:       action,
		Detail:       detail,
		ObjectType:   "share",
		ObjectID:     share.ID.String(),
		Metadata:     map[string]any{"grantee": share.Grantee},
	})
}

func (s *Service) count(op string, err error) {
	switch {
	case err == nil:
		s.metrics.Record(op, nil)
	case errors.Is(err, domain.ErrAccessDenied):
		s.metrics.Record(op, pkgmetrics.Result(pkgmetrics.ResultDenied))
	default:
		s.metrics.Record(op, pkgmetrics.Result(pkgmetrics.ResultError))
	}
}
