package ledger

import "time"

// Transaction is a named, timestamped aggregate of double entries belonging
// to one ledger. Balance was already enforced when each DoubleEntry was
// constructed; a Transaction only requires at least one of them.
type Transaction struct {
	LedgerSlug  string
	Description string
	PostedAt    time.Time
	Entries     TransactionDoubleEntries
}

// TransactionOption customizes an optional transaction field.
type TransactionOption func(*Transaction)

// WithDescription sets the transaction description.
func WithDescription(description string) TransactionOption {
	return func(t *Transaction) { t.Description = description }
}

// WithPostedAt overrides the posting timestamp. The default is the time the
// transaction value was constructed, not the time it is eventually persisted.
func WithPostedAt(at time.Time) TransactionOption {
	return func(t *Transaction) { t.PostedAt = at }
}

// NewTransaction builds a transaction for the ledger identified by slug.
// Constructing one with zero double entries fails with ErrEmptyTransaction.
func NewTransaction(ledgerSlug string, entries TransactionDoubleEntries, opts ...TransactionOption) (Transaction, error) {
	if entries.Len() == 0 {
		return Transaction{}, ErrEmptyTransaction
	}
	tx := Transaction{
		LedgerSlug: ledgerSlug,
		PostedAt:   time.Now().UTC(),
		Entries:    entries,
	}
	for _, opt := range opts {
		opt(&tx)
	}
	return tx, nil
}
