package interfaces

import (
	"context"

	"github.com/finbooks-io/ledger-core/internal/ledger"
	"github.com/finbooks-io/ledger-core/internal/models"
	"github.com/finbooks-io/ledger-core/internal/money"
)

// LedgerStorage is the persistence-facing contract of the ledger core:
// registration of ledgers, currencies, account types and accounts,
// transaction posting, balance and entry retrieval, and transaction
// lifecycle management.
//
// A storage instance owns exactly one connection-like resource and is not
// safe for concurrent use; callers needing concurrency use separate
// instances. Whether the instance manages its own transactions or
// participates in a caller-managed one is fixed at construction.
type LedgerStorage interface {
	// InsertLedger registers a ledger. Insert-only.
	InsertLedger(ctx context.Context, in models.NewLedger) (*models.Ledger, error)

	// InsertCurrency registers a currency. Fails with
	// ErrDuplicateCurrencyCode if the code already exists.
	InsertCurrency(ctx context.Context, in models.NewCurrency) (*models.LedgerCurrency, error)

	// InsertAccountType registers an account type. Fails with
	// ErrAccountTypeExists if a non-entity type with the same slug exists,
	// ErrParentAccountTypeNotFound if the parent id is unresolvable, and
	// ErrNormalBalanceMismatch if the parent's normal balance differs.
	InsertAccountType(ctx context.Context, in models.NewAccountType) (*models.LedgerAccountType, error)

	// AssignAccountTypeToLedger associates an account type with a ledger.
	// A duplicate association fails with ErrDuplicateAssignment.
	AssignAccountTypeToLedger(ctx context.Context, ledgerID, accountTypeID int64) error

	// InsertAccount registers a system account. Fails with
	// ErrAccountTypeNotFound if the type is unresolvable and
	// ErrDuplicateAccountSlug if (ledger, slug) already exists.
	InsertAccount(ctx context.Context, in models.NewAccount) (*models.LedgerAccount, error)

	// FindAccount resolves a reference to its persisted account. Returns
	// (nil, nil) when the account does not exist.
	FindAccount(ctx context.Context, ref ledger.AccountRef) (*models.LedgerAccount, error)

	// FindAccountTypeBySlug returns (nil, nil) when no type has the slug.
	FindAccountTypeBySlug(ctx context.Context, slug string) (*models.LedgerAccountType, error)

	// FindEntityAccountTypes lists the entity-scoped account types assigned
	// to a ledger. Empty on miss.
	FindEntityAccountTypes(ctx context.Context, ledgerID int64) ([]models.LedgerAccountType, error)

	// FindSystemAccounts lists the accounts of a ledger whose type is not
	// entity-scoped. Empty on miss.
	FindSystemAccounts(ctx context.Context, ledgerID int64) ([]models.LedgerAccount, error)

	// GetLedgerIDBySlug fails with ErrLedgerNotFound on an unknown slug.
	GetLedgerIDBySlug(ctx context.Context, slug string) (int64, error)

	// GetLedgerCurrency fails with ErrLedgerNotFound on an unknown ledger.
	GetLedgerCurrency(ctx context.Context, ledgerID int64) (*models.LedgerCurrency, error)

	// FetchAccountBalance aggregates the signed entries of the referenced
	// account and renders the result in the owning ledger's currency. Fails
	// with ErrAccountNotFound if the reference does not resolve.
	FetchAccountBalance(ctx context.Context, ref ledger.AccountRef) (money.Unit, error)

	// GetTransactionByID fails with ErrTransactionNotFound.
	GetTransactionByID(ctx context.Context, id int64) (*models.PersistedTransaction, error)

	// GetTransactionEntries returns the stored entries of a transaction in
	// insert order, amounts rendered with the transaction's ledger
	// currency. Fails with ErrTransactionNotFound on an unknown id.
	GetTransactionEntries(ctx context.Context, id int64) ([]models.PersistedEntry, error)

	// InsertTransaction posts a balanced transaction atomically: it
	// resolves the ledger by slug, resolves every account reference
	// (provisioning entity accounts on first use), and writes the
	// transaction row plus every entry in flattened order. When the store
	// owns the transaction boundary the whole post commits or rolls back
	// as one; when a transaction is already active the writes execute
	// inline and the boundary owner decides. A store that does not manage
	// its own transactions fails with ErrNoActiveTransaction when no
	// transaction is active.
	InsertTransaction(ctx context.Context, tx ledger.Transaction) (*models.PersistedTransaction, error)

	// Begin starts a caller-controlled transaction on the store's
	// connection. Fails with ErrTransactionsUnmanaged on a participating
	// store and ErrTransactionActive when one is already running.
	Begin(ctx context.Context) error

	// Commit commits the transaction started by Begin.
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction started by Begin.
	Rollback(ctx context.Context) error

	// Release releases any connection resource held directly by the store.
	// Safe to call multiple times.
	Release() error
}
