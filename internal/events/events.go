// Package events defines the wallet event payloads published after a ledger
// transaction commits.
package events

import (
	"context"
	"time"
)

const (
	TypeCredited    = "wallet.credited"
	TypeTransferred = "wallet.transferred"
)

// WalletEvent describes one committed wallet operation. For transfers the
// event is emitted from the sender's perspective and CounterpartyID carries
// the receiver.
type WalletEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	AccountID      int64     `json:"account_id"`
	CounterpartyID int64     `json:"counterparty_id,omitempty"`
	Amount         int64     `json:"amount"`
	Balance        int64     `json:"balance"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers wallet events to downstream consumers. Publishing
// happens strictly after commit; the ledger, not the event stream, is the
// source of truth, so implementations may drop on failure.
type Publisher interface {
	Publish(ctx context.Context, event WalletEvent) error
	Close() error
}
