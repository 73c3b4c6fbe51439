// Package storage defines the transactional contract of the ledger store.
// Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"

	"github.com/commercepay/e-wallet-service/internal/models"
)

// Store is durable keyed storage of account balances plus an append-only
// transaction log. All balance mutation goes through a Tx; reads always
// round-trip to the store (no in-process caching) so that multiple service
// instances stay linearizable per account.
type Store interface {
	// Begin opens a transaction. Every mutation inside it either commits
	// as a whole or leaves no trace.
	Begin(ctx context.Context) (Tx, error)

	// Balance returns the current balance, or wallet.ErrAccountNotFound.
	Balance(ctx context.Context, accountID int64) (int64, error)

	// Entries returns the account's ledger entries ordered newest first.
	// An account with no entries yields an empty slice, not an error.
	Entries(ctx context.Context, accountID int64) ([]models.LedgerEntry, error)
}

// Tx is a single all-or-nothing unit of work against the store.
type Tx interface {
	// ApplyDelta atomically adds delta to the account's balance and returns
	// the new balance. The balance row stays locked until Commit or Rollback,
	// so a concurrent ApplyDelta on the same account serializes after this
	// transaction. Fails with wallet.ErrAccountNotFound,
	// wallet.ErrInsufficientFunds (delta would drive the balance negative),
	// or wallet.ErrBusy (lock wait exceeded the deadline).
	ApplyDelta(ctx context.Context, accountID, delta int64) (int64, error)

	// AppendEntry records one immutable ledger row in this transaction.
	AppendEntry(ctx context.Context, entry models.LedgerEntry) error

	Commit() error

	// Rollback discards the transaction. Calling it after Commit is a no-op,
	// so it is safe to defer unconditionally.
	Rollback() error
}
