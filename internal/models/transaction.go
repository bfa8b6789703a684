package models

import (
	"time"

	"github.com/finbooks-io/ledger-core/internal/money"
	"github.com/shopspring/decimal"
)

// PersistedTransaction is the read-model projection of a posted transaction.
// Immutable once returned by the storage layer.
type PersistedTransaction struct {
	ID          int64
	LedgerID    int64
	Description string
	PostedAt    time.Time
	CreatedAt   time.Time
}

// PersistedEntry is the read-model projection of a stored entry. Amount keeps
// the full-precision decimal; Unit carries the same amount rendered with the
// parent transaction's ledger currency.
type PersistedEntry struct {
	ID              int64
	TransactionID   int64
	LedgerAccountID int64
	Action          string
	Amount          decimal.Decimal
	Unit            money.Unit
	CreatedAt       time.Time
}
