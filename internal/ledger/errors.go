package ledger

import "errors"

// Validation errors raised while constructing ledger values. They never touch
// storage and are always recoverable by fixing the input.
var (
	// ErrAccountNameEmpty rejects an empty account name.
	ErrAccountNameEmpty = errors.New("account name must not be empty")

	// ErrAccountNameInvalid rejects a name that is not alphanumeric with
	// interior underscores/hyphens, starting and ending alphanumeric.
	ErrAccountNameInvalid = errors.New("account name is invalid")

	// ErrInvalidExternalID rejects an entity external id that is blank or
	// contains whitespace or a colon.
	ErrInvalidExternalID = errors.New("invalid external id")

	// ErrUnbalancedEntry rejects a double entry whose per-currency debit and
	// credit totals do not match exactly.
	ErrUnbalancedEntry = errors.New("unbalanced double entry")

	// ErrEmptyTransaction rejects a transaction with no double entries.
	ErrEmptyTransaction = errors.New("transaction has no entries")
)
