package model

import "errors"

// Domain errors shared across the ledger, escrow and session layers.
var (
	// ErrAccountNotFound is returned when an operation references an
	// account that does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when a wager debit or transfer
	// is not covered by the account balance. The balance is never
	// changed in that case.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
