package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-access-vault/pkg/access"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
	"github.com/goliatone/go-access-vault/pkg/ratelimit"
	"github.com/goliatone/go-access-vault/pkg/secrets"
	"github.com/google/uuid"
)

// SecretInput describes a new secret slot. SecretType defaults to the
// credential access type and Sequence to 10.
type SecretInput struct {
	Name            string
	Sequence        int
	SecretType      domain.AccessType
	LoginIdentifier string
}

// AddSecret attaches an empty secret slot to a credential.
func (s *Service) AddSecret(ctx context.Context, actor string, credentialID uuid.UUID, in SecretInput) (*domain.SecretView, error) {
	cred, _, err := s.loadAuthorized(ctx, actor, credentialID, access.CapabilityManage)
	if err != nil {
		return nil, err
	}
	sec := &domain.Secret{
		CredentialID:    cred.ID,
		Name:            in.Name,
		Sequence:        in.Sequence,
		SecretType:      in.SecretType,
		LoginIdentifier: in.LoginIdentifier,
	}
	if sec.SecretType == "" {
		sec.SecretType = cred.AccessType
	}
	if sec.Sequence == 0 {
		sec.Sequence = 10
	}
	if err := validateSecret(sec); err != nil {
		return nil, err
	}
	if err := s.secrets.Create(ctx, sec); err != nil {
		return nil, fmt.Errorf("credentials: create secret: %w", err)
	}

	s.record(ctx, cred.ID, actor, domain.ActionUpdate, fmt.Sprintf("Secret added (%s)", sec.Name))
	view := sec.View()
	return &view, nil
}

// ListSecrets returns payload-free views. Anyone who can view the credential
// can see whether each secret is set.
func (s *Service) ListSecrets(ctx context.Context, actor string, credentialID uuid.UUID) ([]domain.SecretView, error) {
	if _, _, err := s.loadAuthorized(ctx, actor, credentialID, access.CapabilityView); err != nil {
		return nil, err
	}
	items, err := s.secrets.ListByCredential(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("credentials: list secrets: %w", err)
	}
	out := make([]domain.SecretView, 0, len(items))
	for _, sec := range items {
		out = append(out, sec.View())
	}
	return out, nil
}

// RemoveSecret deletes a secret slot and refreshes the credential secret flag.
func (s *Service) RemoveSecret(ctx context.Context, actor string, secretID uuid.UUID) error {
	var removed *domain.Secret
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		sec, err := s.secrets.GetByID(ctx, secretID)
		if err != nil {
			return fmt.Errorf("credentials: load secret %s: %w", secretID, err)
		}
		if _, _, err := s.loadAuthorized(ctx, actor, sec.CredentialID, access.CapabilityManage); err != nil {
			return err
		}
		if err := s.secrets.Delete(ctx, secretID); err != nil {
			return fmt.Errorf("credentials: delete secret: %w", err)
		}
		remaining, err := s.secrets.ListByCredential(ctx, sec.CredentialID)
		if err != nil {
			return fmt.Errorf("credentials: list secrets: %w", err)
		}
		anySet := false
		for _, r := range remaining {
			anySet = anySet || r.SecretSet()
		}
		if _, err := s.mutate(ctx, sec.CredentialID, func(c *domain.Credential) error {
			c.SecretSet = anySet
			return nil
		}); err != nil {
			return err
		}
		removed = sec
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, removed.CredentialID, actor, domain.ActionUpdate, fmt.Sprintf("Secret removed (%s)", removed.Name))
	return nil
}

// SetSecret encrypts plaintext into the secret and stamps the rotation time
// on both the secret and its credential in one transaction.
func (s *Service) SetSecret(ctx context.Context, actor string, secretID uuid.UUID, plaintext string) (*domain.SecretView, error) {
	if plaintext == "" {
		return nil, domain.Invalid("secret", domain.ErrEmptyInput)
	}

	var updated *domain.Secret
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		sec, err := s.secrets.GetByID(ctx, secretID)
		if err != nil {
			return fmt.Errorf("credentials: load secret %s: %w", secretID, err)
		}
		if _, _, err := s.loadAuthorized(ctx, actor, sec.CredentialID, access.CapabilityManage); err != nil {
			return err
		}
		token, err := s.engine.Encrypt(plaintext)
		if err != nil {
			return fmt.Errorf("credentials: encrypt: %w", err)
		}

		now := s.now().UTC()
		sec.Payload = token
		sec.LastRotationAt = now
		if err := s.secrets.Update(ctx, sec); err != nil {
			return fmt.Errorf("credentials: update secret: %w", err)
		}
		if _, err := s.mutate(ctx, sec.CredentialID, func(c *domain.Credential) error {
			c.LastRotationAt = now
			c.SecretSet = true
			return nil
		}); err != nil {
			return err
		}
		updated = sec
		return nil
	})
	s.count(pkgmetrics.OpSetSecret, err)
	if err != nil {
		return nil, err
	}

	s.record(ctx, updated.CredentialID, actor, domain.ActionRotate, fmt.Sprintf("Secret rotated (%s)", updated.Name))
	view := updated.View()
	return &view, nil
}

// RevealForCopy decrypts and returns the plaintext exactly once. Permission
// is evaluated at call time and every success consumes rate limit budget.
// The plaintext is returned only when the copy entry was recorded.
func (s *Service) RevealForCopy(ctx context.Context, actor string, secretID uuid.UUID) (string, error) {
	plaintext, err := s.reveal(ctx, actor, secretID)
	s.count(pkgmetrics.OpDisclose, err)
	return plaintext, err
}

func (s *Service) reveal(ctx context.Context, actor string, secretID uuid.UUID) (string, error) {
	sec, err := s.secrets.GetByID(ctx, secretID)
	if err != nil {
		return "", fmt.Errorf("credentials: load secret %s: %w", secretID, err)
	}
	cred, _, err := s.loadAuthorized(ctx, actor, sec.CredentialID, access.CapabilityDisclose)
	if err != nil {
		return "", err
	}
	if !sec.SecretSet() {
		return "", domain.Invalid("secret", domain.ErrNotSet)
	}

	res, err := s.limiter.Allow(ctx, actor, cred.ID.String())
	if err != nil {
		return "", fmt.Errorf("credentials: rate limit: %w", err)
	}
	if !res.Allowed {
		s.logger.Warn("disclosure rate limited",
			logger.Field{Key: "credential_id", Value: cred.ID.String()},
			logger.Field{Key: "actor", Value: actor},
			logger.Field{Key: "retry_after", Value: res.RetryAfter.String()},
		)
		return "", &domain.RateLimitError{RetryAfter: res.RetryAfter}
	}

	plaintext, err := s.engine.Decrypt(sec.Payload)
	if err != nil {
		fields := []logger.Field{
			{Key: "credential_id", Value: cred.ID.String()},
			{Key: "secret_id", Value: sec.ID.String()},
			logger.Err(err),
		}
		if errors.Is(err, secrets.ErrInvalidKey) {
			s.logger.Error("crypto engine misconfigured", fields...)
		} else {
			s.logger.Error("secret decryption failed", fields...)
		}
		s.release(ctx, res, cred.ID)
		return "", domain.ErrInternal
	}

	if _, err := s.audit.Record(ctx, auditCopy(cred.ID, actor, sec.Name)); err != nil {
		s.release(ctx, res, cred.ID)
		return "", domain.ErrInternal
	}
	return plaintext, nil
}

// release hands back budget for a disclosure that never reached the caller.
func (s *Service) release(ctx context.Context, res ratelimit.Result, credentialID uuid.UUID) {
	if err := s.limiter.Release(ctx, res); err != nil {
		s.logger.Warn("rate limit release failed",
			logger.Field{Key: "credential_id", Value: credentialID.String()},
			logger.Err(err),
		)
	}
}
