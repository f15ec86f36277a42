package store

import (
	"context"
	"errors"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/google/uuid"
)

// TransactionManager runs fn inside one transaction. Repositories pick the
// transaction up from the context handed to fn.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactionManager runs fn directly. Used by the memory backend.
type NopTransactionManager struct{}

var _ TransactionManager = (*NopTransactionManager)(nil)

func (n *NopTransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// UpdateCredential re-reads the credential, applies fn to the fresh row and
// writes it back. A lost version race repeats the cycle, at most attempts
// times, before ErrConflict is returned. Errors from the read and from fn are
// returned unchanged.
func UpdateCredential(ctx context.Context, repo CredentialRepository, id uuid.UUID, attempts int, fn func(*domain.Credential) error) (*domain.Credential, error) {
	if attempts < 1 {
		attempts = 1
	}
	for range attempts {
		cred, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(cred); err != nil {
			return nil, err
		}
		err = repo.Update(ctx, cred)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cred, nil
	}
	return nil, ErrConflict
}
