package models

// Ledger is a named, single-currency accounting book.
type Ledger struct {
	ID               int64
	Slug             string
	Name             string
	Description      string
	LedgerCurrencyID int64
}

// NewLedger is the input for registering a ledger.
type NewLedger struct {
	Slug             string
	Name             string
	Description      string
	LedgerCurrencyID int64
}

// LedgerCurrency is a registered currency with its display precision.
type LedgerCurrency struct {
	ID                    int64
	Code                  string
	MinimumFractionDigits int32
	Symbol                string
}

// NewCurrency is the input for registering a currency.
type NewCurrency struct {
	Code                  string
	MinimumFractionDigits int32
	Symbol                string
}
