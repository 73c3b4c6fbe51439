package wallet

import "errors"

var (
	// ErrInvalidAmount indicates a non-positive operation amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrAccountNotFound indicates that the account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientFunds indicates that a debit would make the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBusy indicates that a row lock could not be acquired within the
	// configured deadline. Safe for the caller to retry.
	ErrBusy = errors.New("account busy, try again")
)
