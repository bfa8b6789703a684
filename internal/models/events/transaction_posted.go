package events

import "time"

// TransactionPosted is published by the application layer after a ledger
// transaction has committed.
type TransactionPosted struct {
	TransactionID int64     `json:"transaction_id"`
	LedgerSlug    string    `json:"ledger_slug"`
	Description   string    `json:"description"`
	PostedAt      time.Time `json:"posted_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}
