package models

// Account holds the current balance for a wallet account.
// Accounts are provisioned out-of-band; this service never creates them.
type Account struct {
	AccountID int64 `json:"account_id"`
	Balance   int64 `json:"balance"` // minor currency units (cents), never negative
}
