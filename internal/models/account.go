package models

// NormalBalance is the direction that increases an account's balance.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// LedgerAccountType classifies accounts sharing a normal balance direction.
// Entity-scoped types are instantiated per external entity on first use;
// system types have exactly one account row per slug.
type LedgerAccountType struct {
	ID                        int64
	Slug                      string
	Name                      string
	Description               string
	NormalBalance             NormalBalance
	IsEntityLedgerAccount     bool
	ParentLedgerAccountTypeID *int64
}

// NewAccountType is the input for registering an account type. A parent, when
// set, must carry the same normal balance as the child.
type NewAccountType struct {
	Slug                      string
	Name                      string
	Description               string
	NormalBalance             NormalBalance
	IsEntityLedgerAccount     bool
	ParentLedgerAccountTypeID *int64
}

// LedgerAccount is a persisted account, unique by slug within its ledger.
type LedgerAccount struct {
	ID                  int64
	LedgerID            int64
	LedgerAccountTypeID int64
	Slug                string
	Description         string
}

// NewAccount is the input for registering a system account.
type NewAccount struct {
	LedgerID            int64
	LedgerAccountTypeID int64
	Slug                string
	Description         string
}
