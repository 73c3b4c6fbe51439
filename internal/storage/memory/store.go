// Package memory provides an in-memory ledger store with the same
// transactional contract as the postgres implementation. It backs the test
// suite and local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/commercepay/e-wallet-service/internal/models"
	"github.com/commercepay/e-wallet-service/internal/storage"
	"github.com/commercepay/e-wallet-service/internal/wallet"
)

// Store keeps balances and ledger entries in maps. Each account has its own
// lock (a one-slot channel) so that transactions touching disjoint accounts
// proceed concurrently while transactions on an overlapping account set
// serialize, mirroring postgres row locks.
type Store struct {
	mu       sync.Mutex
	balances map[int64]int64
	entries  map[int64][]models.LedgerEntry
	locks    map[int64]chan struct{}
}

func NewStore() *Store {
	return &Store{
		balances: make(map[int64]int64),
		entries:  make(map[int64][]models.LedgerEntry),
		locks:    make(map[int64]chan struct{}),
	}
}

// CreateAccount provisions an account with an initial balance. Accounts are
// created out-of-band in production; this is the out-of-band mechanism for
// tests and local runs.
func (s *Store) CreateAccount(accountID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[accountID] = balance
}

func (s *Store) lockFor(accountID int64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[accountID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[accountID] = ch
	}
	return ch
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	return &memTx{
		store:  s,
		staged: make(map[int64]int64),
	}, nil
}

func (s *Store) Balance(ctx context.Context, accountID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[accountID]
	if !ok {
		return 0, wallet.ErrAccountNotFound
	}
	return balance, nil
}

func (s *Store) Entries(ctx context.Context, accountID int64) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.entries[accountID]
	out := make([]models.LedgerEntry, len(stored))
	for i, e := range stored {
		out[len(stored)-1-i] = e
	}
	// Insertion order already tracks time; the stable sort only reorders
	// entries whose timestamps genuinely differ.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// memTx stages balance changes and entries, applying them to the store only
// on Commit. Account locks acquired by ApplyDelta are held until Commit or
// Rollback.
type memTx struct {
	store   *Store
	held    []int64
	staged  map[int64]int64 // accountID -> staged balance
	pending []models.LedgerEntry
	done    bool
}

func (t *memTx) holds(accountID int64) bool {
	for _, id := range t.held {
		if id == accountID {
			return true
		}
	}
	return false
}

func (t *memTx) ApplyDelta(ctx context.Context, accountID, delta int64) (int64, error) {
	if !t.holds(accountID) {
		ch := t.store.lockFor(accountID)
		select {
		case ch <- struct{}{}:
			t.held = append(t.held, accountID)
		case <-ctx.Done():
			return 0, wallet.ErrBusy
		}
	}

	balance, ok := t.staged[accountID]
	if !ok {
		t.store.mu.Lock()
		balance, ok = t.store.balances[accountID]
		t.store.mu.Unlock()
		if !ok {
			return 0, wallet.ErrAccountNotFound
		}
	}
	if delta < 0 && balance+delta < 0 {
		return 0, wallet.ErrInsufficientFunds
	}
	balance += delta
	t.staged[accountID] = balance
	return balance, nil
}

func (t *memTx) AppendEntry(ctx context.Context, entry models.LedgerEntry) error {
	t.pending = append(t.pending, entry)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	for accountID, balance := range t.staged {
		t.store.balances[accountID] = balance
	}
	for _, entry := range t.pending {
		t.store.entries[entry.AccountID] = append(t.store.entries[entry.AccountID], entry)
	}
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	t.done = true
	for _, accountID := range t.held {
		<-t.store.lockFor(accountID)
	}
	t.held = nil
}

var _ storage.Store = (*Store)(nil)
