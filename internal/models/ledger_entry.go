package models

import "time"

// LedgerEntry is a single append-only ledger record for an account.
// Amount is a signed delta in minor units: negative for a debit, positive
// for a credit. Entries are immutable once written.
type LedgerEntry struct {
	AccountID int64     `json:"account_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
