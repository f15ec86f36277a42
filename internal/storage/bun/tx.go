package bunrepo

import (
	"context"

	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	"github.com/uptrace/bun"
)

type txKey struct{}

// ContextWithTx attaches tx so repositories join it.
func ContextWithTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	return tx, ok
}

func idb(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

// TxManager runs callbacks in a bun transaction. Nested calls join the outer
// transaction.
type TxManager struct {
	db *bun.DB
}

var _ store.TransactionManager = (*TxManager)(nil)

func NewTxManager(db *bun.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	})
}
