// Package postgres implements the ledger store on postgres via database/sql.
// Row locking (SELECT ... FOR UPDATE) inside a single transaction per wallet
// operation provides the atomicity and per-account serialization the wallet
// core depends on.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/commercepay/e-wallet-service/internal/models"
	"github.com/commercepay/e-wallet-service/internal/storage"
	"github.com/commercepay/e-wallet-service/internal/wallet"
)

// pq error code for lock_not_available, raised when lock_timeout expires.
const lockNotAvailable = "55P03"

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewStore wraps an open database handle. lockTimeout bounds how long an
// ApplyDelta may wait on a row lock held by a concurrent transaction before
// failing with wallet.ErrBusy; zero disables the bound.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if s.lockTimeout > 0 {
		// SET LOCAL scopes the timeout to this transaction only.
		q := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := dbTx.ExecContext(ctx, q); err != nil {
			_ = dbTx.Rollback()
			return nil, fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	return &pgTx{tx: dbTx}, nil
}

func (s *Store) Balance(ctx context.Context, accountID int64) (int64, error) {
	const q = `SELECT balance FROM account WHERE account_id = $1`

	var balance int64
	err := s.db.QueryRowContext(ctx, q, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, wallet.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

func (s *Store) Entries(ctx context.Context, accountID int64) ([]models.LedgerEntry, error) {
	const q = `SELECT amount, timestamp FROM money_transaction
	WHERE account_id = $1 ORDER BY timestamp DESC`

	rows, err := s.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LedgerEntry, 0)
	for rows.Next() {
		entry := models.LedgerEntry{AccountID: accountID}
		if err := rows.Scan(&entry.Amount, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) ApplyDelta(ctx context.Context, accountID, delta int64) (int64, error) {
	// Lock the row first so the funds check and the update cannot race with
	// a concurrent transaction on the same account.
	const sel = `SELECT balance FROM account WHERE account_id = $1 FOR UPDATE`

	var balance int64
	err := t.tx.QueryRowContext(ctx, sel, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, wallet.ErrAccountNotFound
	}
	if err != nil {
		return 0, mapLockErr(err)
	}
	if delta < 0 && balance+delta < 0 {
		return 0, wallet.ErrInsufficientFunds
	}

	const upd = `UPDATE account SET balance = balance + $1 WHERE account_id = $2 RETURNING balance`
	if err := t.tx.QueryRowContext(ctx, upd, delta, accountID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return balance, nil
}

func (t *pgTx) AppendEntry(ctx context.Context, entry models.LedgerEntry) error {
	const q = `INSERT INTO money_transaction (account_id, amount, timestamp)
	VALUES ($1, $2, $3)`

	_, err := t.tx.ExecContext(ctx, q, entry.AccountID, entry.Amount, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) Commit() error {
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// mapLockErr translates lock-wait failures into the retryable wallet.ErrBusy;
// anything else is a storage fault and propagates wrapped.
func mapLockErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == lockNotAvailable {
		return wallet.ErrBusy
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wallet.ErrBusy
	}
	return fmt.Errorf("lock account row: %w", err)
}

var _ storage.Store = (*Store)(nil)
