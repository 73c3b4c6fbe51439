// Package wallet implements the account operations of the e-wallet: credit
// (top-up), peer-to-peer transfer, balance lookup and transaction history.
// Each operation is a single atomic unit against the ledger store with two
// terminal outcomes: committed, or aborted with no observable effect.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/commercepay/e-wallet-service/internal/events"
	"github.com/commercepay/e-wallet-service/internal/models"
	"github.com/commercepay/e-wallet-service/internal/storage"
)

// Service orchestrates wallet operations against a transactional store.
// The publisher is optional; pass nil to disable events.
type Service struct {
	store     storage.Store
	publisher events.Publisher
	logger    *zap.Logger

	now func() time.Time
}

func NewService(store storage.Store, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Credit adds amount to the account's balance and appends the matching
// ledger entry, both inside one store transaction. It returns the new
// balance. This is the mint side of a top-up: there is no offsetting debit,
// the money is externally funded.
func (s *Service) Credit(ctx context.Context, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin credit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UTC()
	balance, err := tx.ApplyDelta(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	entry := models.LedgerEntry{AccountID: accountID, Amount: amount, Timestamp: now}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		return 0, fmt.Errorf("append credit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credit: %w", err)
	}

	s.publish(ctx, events.WalletEvent{
		ID:         uuid.New().String(),
		Type:       events.TypeCredited,
		AccountID:  accountID,
		Amount:     amount,
		Balance:    balance,
		OccurredAt: now,
	})
	return balance, nil
}

// Transfer moves amount from sender to receiver: one debit and one credit
// with a shared timestamp, plus the two ledger entries, all in one store
// transaction. It returns the sender's post-transfer balance.
//
// Row locks are taken in ascending account-id order, not sender-then-receiver
// order, so two opposite-direction transfers between the same pair of
// accounts cannot deadlock each other.
func (s *Service) Transfer(ctx context.Context, t models.Transfer) (int64, error) {
	if t.Amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var senderBalance int64
	apply := func(accountID, delta int64) error {
		balance, err := tx.ApplyDelta(ctx, accountID, delta)
		if err != nil {
			return err
		}
		if accountID == t.SenderID && delta < 0 {
			senderBalance = balance
		}
		return nil
	}

	if t.SenderID == t.ReceiverID {
		// Self-transfer nets to zero but still produces both ledger rows.
		if err := apply(t.SenderID, -t.Amount); err != nil {
			return 0, err
		}
		if err := apply(t.ReceiverID, t.Amount); err != nil {
			return 0, err
		}
	} else {
		first, second := t.SenderID, t.ReceiverID
		if second < first {
			first, second = second, first
		}
		for _, accountID := range []int64{first, second} {
			delta := t.Amount
			if accountID == t.SenderID {
				delta = -t.Amount
			}
			if err := apply(accountID, delta); err != nil {
				return 0, err
			}
		}
	}

	now := s.now().UTC()
	debit := models.LedgerEntry{AccountID: t.SenderID, Amount: -t.Amount, Timestamp: now}
	credit := models.LedgerEntry{AccountID: t.ReceiverID, Amount: t.Amount, Timestamp: now}
	if err := tx.AppendEntry(ctx, debit); err != nil {
		return 0, fmt.Errorf("append debit entry: %w", err)
	}
	if err := tx.AppendEntry(ctx, credit); err != nil {
		return 0, fmt.Errorf("append credit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transfer: %w", err)
	}

	s.publish(ctx, events.WalletEvent{
		ID:             uuid.New().String(),
		Type:           events.TypeTransferred,
		AccountID:      t.SenderID,
		CounterpartyID: t.ReceiverID,
		Amount:         t.Amount,
		Balance:        senderBalance,
		OccurredAt:     now,
	})
	return senderBalance, nil
}

// Balance is a pass-through to the store.
func (s *Service) Balance(ctx context.Context, accountID int64) (int64, error) {
	return s.store.Balance(ctx, accountID)
}

// History returns the account's ledger entries, newest first.
func (s *Service) History(ctx context.Context, accountID int64) ([]models.LedgerEntry, error) {
	return s.store.Entries(ctx, accountID)
}

// publish delivers the event best-effort. The operation has already
// committed; an event failure must not surface to the caller.
func (s *Service) publish(ctx context.Context, ev events.WalletEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish wallet event failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
	}
}
