package interfaces

import "errors"

// Not-found conditions, one per entity kind. Lookups where a miss is an
// expected outcome return nil instead; these surface only where the caller
// asked for something it assumes exists.
var (
	ErrLedgerNotFound            = errors.New("ledger not found")
	ErrAccountNotFound           = errors.New("account not found")
	ErrAccountTypeNotFound       = errors.New("account type not found")
	ErrParentAccountTypeNotFound = errors.New("parent account type not found")
	ErrTransactionNotFound       = errors.New("transaction not found")
)

// Conflict conditions, translated from the persistence layer's uniqueness
// violations. Any other persistence failure propagates unmodified.
var (
	ErrDuplicateCurrencyCode = errors.New("currency code already exists")
	ErrDuplicateAccountSlug  = errors.New("account slug already exists in ledger")
	ErrAccountTypeExists     = errors.New("account type already exists")
	ErrDuplicateAssignment   = errors.New("account type already assigned to ledger")
)

// ErrNormalBalanceMismatch rejects an account type whose parent carries a
// different normal balance.
var ErrNormalBalanceMismatch = errors.New("parent account type has a different normal balance")

// Protocol errors: misuse of the transaction-management contract.
var (
	// ErrTransactionsUnmanaged is returned when a boundary operation is
	// requested on a store that cannot start, commit, or roll back its own
	// transactions (it participates in a caller-managed one).
	ErrTransactionsUnmanaged = errors.New("store does not manage its own transactions")

	// ErrTransactionActive is returned by Begin when a transaction is
	// already active on the store's connection.
	ErrTransactionActive = errors.New("a transaction is already active")

	// ErrNoActiveTransaction is returned by Commit or Rollback when no
	// transaction is active.
	ErrNoActiveTransaction = errors.New("no active transaction")
)
