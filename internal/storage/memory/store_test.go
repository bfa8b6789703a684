package memory

import (
	"context"
	"testing"

	"github.com/finbooks-io/ledger-core/internal/interfaces"
	"github.com/finbooks-io/ledger-core/internal/ledger"
	"github.com/finbooks-io/ledger-core/internal/models"
	"github.com/finbooks-io/ledger-core/internal/money"
	"github.com/finbooks-io/ledger-core/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed registers the fixture the posting tests run against: ledger "main"
// in USD (2 fraction digits), a credit-normal system account SYSTEM_INCOME
// and a debit-normal entity-scoped type USER_RECEIVABLES.
func seed(t *testing.T, st *MemoryLedgerStore) {
	t.Helper()
	ctx := context.Background()

	usd, err := st.InsertCurrency(ctx, models.NewCurrency{Code: "USD", MinimumFractionDigits: 2, Symbol: "$"})
	require.NoError(t, err)

	book, err := st.InsertLedger(ctx, models.NewLedger{Slug: "main", Name: "Main ledger", LedgerCurrencyID: usd.ID})
	require.NoError(t, err)

	income, err := st.InsertAccountType(ctx, models.NewAccountType{
		Slug:          "SYSTEM_INCOME",
		Name:          "System income",
		NormalBalance: models.NormalBalanceCredit,
	})
	require.NoError(t, err)

	receivables, err := st.InsertAccountType(ctx, models.NewAccountType{
		Slug:                  "USER_RECEIVABLES",
		Name:                  "User receivables",
		NormalBalance:         models.NormalBalanceDebit,
		IsEntityLedgerAccount: true,
	})
	require.NoError(t, err)

	require.NoError(t, st.AssignAccountTypeToLedger(ctx, book.ID, income.ID))
	require.NoError(t, st.AssignAccountTypeToLedger(ctx, book.ID, receivables.ID))

	_, err = st.InsertAccount(ctx, models.NewAccount{
		LedgerID:            book.ID,
		LedgerAccountTypeID: income.ID,
		Slug:                "SYSTEM_INCOME",
	})
	require.NoError(t, err)
}

func usd(t *testing.T, amount string) money.Unit {
	t.Helper()
	u, err := money.New(amount, "USD", 2)
	require.NoError(t, err)
	return u
}

func incomeRef(t *testing.T) ledger.AccountRef {
	t.Helper()
	ref, err := ledger.NewSystemAccountRef("main", "SYSTEM_INCOME")
	require.NoError(t, err)
	return ref
}

func receivablesRef(t *testing.T, externalID string) ledger.EntityAccountRef {
	t.Helper()
	ref, err := ledger.NewEntityAccountRef("main", "USER_RECEIVABLES", externalID)
	require.NoError(t, err)
	return ref
}

// postReceivable posts an invoice: debit the entity receivable, credit
// system income.
func postReceivable(t *testing.T, st *MemoryLedgerStore, externalID, amount string) (*models.PersistedTransaction, error) {
	t.Helper()

	de, err := ledger.NewDoubleEntry(
		[]ledger.Entry{ledger.NewEntry(receivablesRef(t, externalID), usd(t, amount))},
		[]ledger.Entry{ledger.NewEntry(incomeRef(t), usd(t, amount))},
	)
	require.NoError(t, err)

	tx, err := ledger.NewTransaction("main", ledger.DoubleEntries(de), ledger.WithDescription("invoice"))
	require.NoError(t, err)

	return st.InsertTransaction(context.Background(), tx)
}

func TestInsertCurrencyDuplicateCode(t *testing.T) {
	st := NewMemoryLedgerStore()
	ctx := context.Background()

	_, err := st.InsertCurrency(ctx, models.NewCurrency{Code: "USD", MinimumFractionDigits: 2})
	require.NoError(t, err)

	_, err = st.InsertCurrency(ctx, models.NewCurrency{Code: "USD", MinimumFractionDigits: 2})
	require.ErrorIs(t, err, interfaces.ErrDuplicateCurrencyCode)
}

func TestInsertAccountTypeDuplicateSlug(t *testing.T) {
	st := NewMemoryLedgerStore()
	ctx := context.Background()

	_, err := st.InsertAccountType(ctx, models.NewAccountType{Slug: "CASH", NormalBalance: models.NormalBalanceDebit})
	require.NoError(t, err)

	_, err = st.InsertAccountType(ctx, models.NewAccountType{Slug: "CASH", NormalBalance: models.NormalBalanceDebit})
	require.ErrorIs(t, err, interfaces.ErrAccountTypeExists)
}

func TestInsertAccountTypeParentNotFound(t *testing.T) {
	st := NewMemoryLedgerStore()
	missing := int64(999)

	_, err := st.InsertAccountType(context.Background(), models.NewAccountType{
		Slug:                      "CHILD",
		NormalBalance:             models.NormalBalanceDebit,
		ParentLedgerAccountTypeID: &missing,
	})
	require.ErrorIs(t, err, interfaces.ErrParentAccountTypeNotFound)
}

func TestInsertAccountTypeNormalBalanceMismatch(t *testing.T) {
	st := NewMemoryLedgerStore()
	ctx := context.Background()

	parent, err := st.InsertAccountType(ctx, models.NewAccountType{Slug: "ASSETS", NormalBalance: models.NormalBalanceDebit})
	require.NoError(t, err)

	_, err = st.InsertAccountType(ctx, models.NewAccountType{
		Slug:                      "REVENUE",
		NormalBalance:             models.NormalBalanceCredit,
		ParentLedgerAccountTypeID: &parent.ID,
	})
	require.ErrorIs(t, err, interfaces.ErrNormalBalanceMismatch)
}

func TestInsertAccountTypeHierarchy(t *testing.T) {
	st := NewMemoryLedgerStore()
	ctx := context.Background()

	parent, err := st.InsertAccountType(ctx, models.NewAccountType{Slug: "ASSETS", NormalBalance: models.NormalBalanceDebit})
	require.NoError(t, err)

	child, err := st.InsertAccountType(ctx, models.NewAccountType{
		Slug:                      "CASH",
		NormalBalance:             models.NormalBalanceDebit,
		ParentLedgerAccountTypeID: &parent.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, child.ParentLedgerAccountTypeID)
	assert.Equal(t, parent.ID, *child.ParentLedgerAccountTypeID)
}

func TestInsertAccountDuplicateSlug(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	book, err := st.GetLedgerIDBySlug(ctx, "main")
	require.NoError(t, err)
	at, err := st.FindAccountTypeBySlug(ctx, "SYSTEM_INCOME")
	require.NoError(t, err)
	require.NotNil(t, at)

	_, err = st.InsertAccount(ctx, models.NewAccount{
		LedgerID:            book,
		LedgerAccountTypeID: at.ID,
		Slug:                "SYSTEM_INCOME",
	})
	require.ErrorIs(t, err, interfaces.ErrDuplicateAccountSlug)
}

func TestInsertAccountTypeMissing(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)

	_, err := st.InsertAccount(context.Background(), models.NewAccount{
		LedgerID:            1,
		LedgerAccountTypeID: 999,
		Slug:                "ORPHAN",
	})
	require.ErrorIs(t, err, interfaces.ErrAccountTypeNotFound)
}

func TestAssignAccountTypeTwice(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	book, err := st.GetLedgerIDBySlug(ctx, "main")
	require.NoError(t, err)
	at, err := st.FindAccountTypeBySlug(ctx, "SYSTEM_INCOME")
	require.NoError(t, err)

	err = st.AssignAccountTypeToLedger(ctx, book, at.ID)
	require.ErrorIs(t, err, interfaces.ErrDuplicateAssignment)
}

func TestFindLookupsMiss(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	at, err := st.FindAccountTypeBySlug(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, at)

	account, err := st.FindAccount(ctx, receivablesRef(t, "never-posted"))
	require.NoError(t, err)
	assert.Nil(t, account)

	_, err = st.GetLedgerIDBySlug(ctx, "nope")
	require.ErrorIs(t, err, interfaces.ErrLedgerNotFound)
}

func TestFindSystemAccountsAndEntityTypes(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	book, err := st.GetLedgerIDBySlug(ctx, "main")
	require.NoError(t, err)

	system, err := st.FindSystemAccounts(ctx, book)
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "SYSTEM_INCOME", system[0].Slug)

	entity, err := st.FindEntityAccountTypes(ctx, book)
	require.NoError(t, err)
	require.Len(t, entity, 1)
	assert.Equal(t, "USER_RECEIVABLES", entity[0].Slug)

	// Entity accounts provisioned later never show up as system accounts.
	_, err = postReceivable(t, st, "2", "10.00")
	require.NoError(t, err)
	system, err = st.FindSystemAccounts(ctx, book)
	require.NoError(t, err)
	assert.Len(t, system, 1)
}

func TestPostingScenarioBalance(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)

	_, err := postReceivable(t, st, "2", "100.00")
	require.NoError(t, err)

	balance, err := st.FetchAccountBalance(context.Background(), receivablesRef(t, "2"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())

	// The credit side carries the same amount on its normal side.
	balance, err = st.FetchAccountBalance(context.Background(), incomeRef(t))
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())

	assert.Equal(t, storage.PostingCommitted, st.LastPostingState())
}

func TestEntityResolutionIdempotent(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	_, err := postReceivable(t, st, "2", "40.00")
	require.NoError(t, err)
	first, err := st.FindAccount(ctx, receivablesRef(t, "2"))
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = postReceivable(t, st, "2", "60.00")
	require.NoError(t, err)
	second, err := st.FindAccount(ctx, receivablesRef(t, "2"))
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.ID, second.ID)

	balance, err := st.FetchAccountBalance(ctx, receivablesRef(t, "2"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())
}

func TestInsertTransactionLedgerNotFound(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)

	de, err := ledger.NewDoubleEntry(
		[]ledger.Entry{ledger.NewEntry(receivablesRef(t, "2"), usd(t, "1.00"))},
		[]ledger.Entry{ledger.NewEntry(incomeRef(t), usd(t, "1.00"))},
	)
	require.NoError(t, err)
	tx, err := ledger.NewTransaction("unknown", ledger.DoubleEntries(de))
	require.NoError(t, err)

	_, err = st.InsertTransaction(context.Background(), tx)
	require.ErrorIs(t, err, interfaces.ErrLedgerNotFound)
}

func TestInsertTransactionRollsBackOnFailure(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	// A valid double entry whose credit references a system account that
	// was never registered: resolution fails after the debit entry was
	// already written.
	ghost, err := ledger.NewSystemAccountRef("main", "SYSTEM_GHOST")
	require.NoError(t, err)
	de, err := ledger.NewDoubleEntry(
		[]ledger.Entry{ledger.NewEntry(receivablesRef(t, "7"), usd(t, "25.00"))},
		[]ledger.Entry{ledger.NewEntry(ghost, usd(t, "25.00"))},
	)
	require.NoError(t, err)
	tx, err := ledger.NewTransaction("main", ledger.DoubleEntries(de))
	require.NoError(t, err)

	_, err = st.InsertTransaction(ctx, tx)
	require.ErrorIs(t, err, interfaces.ErrAccountNotFound)
	assert.Equal(t, storage.PostingRolledBack, st.LastPostingState())

	// Nothing is visible afterwards: neither the provisioned entity
	// account nor any entry rows.
	account, err := st.FindAccount(ctx, receivablesRef(t, "7"))
	require.NoError(t, err)
	assert.Nil(t, account)

	balance, err := st.FetchAccountBalance(ctx, incomeRef(t))
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.String())
}

func TestCallerManagedRollbackHidesWrites(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	require.NoError(t, st.Begin(ctx))
	_, err := postReceivable(t, st, "2", "100.00")
	require.NoError(t, err)
	assert.Equal(t, storage.PostingRunning, st.LastPostingState(), "participating call does not own the boundary")
	require.NoError(t, st.Rollback(ctx))

	balance, err := st.FetchAccountBalance(ctx, incomeRef(t))
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.String())

	account, err := st.FindAccount(ctx, receivablesRef(t, "2"))
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestCallerManagedCommitKeepsWrites(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	require.NoError(t, st.Begin(ctx))
	_, err := postReceivable(t, st, "2", "30.00")
	require.NoError(t, err)
	_, err = postReceivable(t, st, "2", "70.00")
	require.NoError(t, err)
	require.NoError(t, st.Commit(ctx))

	balance, err := st.FetchAccountBalance(ctx, receivablesRef(t, "2"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())
}

func TestTransactionProtocol(t *testing.T) {
	st := NewMemoryLedgerStore()
	ctx := context.Background()

	require.ErrorIs(t, st.Commit(ctx), interfaces.ErrNoActiveTransaction)
	require.ErrorIs(t, st.Rollback(ctx), interfaces.ErrNoActiveTransaction)

	require.NoError(t, st.Begin(ctx))
	require.ErrorIs(t, st.Begin(ctx), interfaces.ErrTransactionActive)
	require.NoError(t, st.Rollback(ctx))
}

func TestGetTransactionAndEntries(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)
	ctx := context.Background()

	persisted, err := postReceivable(t, st, "2", "100.00")
	require.NoError(t, err)

	got, err := st.GetTransactionByID(ctx, persisted.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice", got.Description)

	entries, err := st.GetTransactionEntries(ctx, persisted.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(ledger.Debit), entries[0].Action)
	assert.Equal(t, string(ledger.Credit), entries[1].Action)
	assert.Equal(t, "100.00", entries[0].Unit.String())
	assert.Equal(t, "USD", entries[0].Unit.CurrencyCode())

	_, err = st.GetTransactionByID(ctx, 424242)
	require.ErrorIs(t, err, interfaces.ErrTransactionNotFound)
	_, err = st.GetTransactionEntries(ctx, 424242)
	require.ErrorIs(t, err, interfaces.ErrTransactionNotFound)
}

func TestFetchAccountBalanceNotFound(t *testing.T) {
	st := NewMemoryLedgerStore()
	seed(t, st)

	ghost, err := ledger.NewSystemAccountRef("main", "SYSTEM_GHOST")
	require.NoError(t, err)
	_, err = st.FetchAccountBalance(context.Background(), ghost)
	require.ErrorIs(t, err, interfaces.ErrAccountNotFound)
}

func TestReleaseIdempotent(t *testing.T) {
	st := NewMemoryLedgerStore()
	require.NoError(t, st.Release())
	require.NoError(t, st.Release())
}
