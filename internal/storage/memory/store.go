package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/finbooks-io/ledger-core/internal/interfaces"
	"github.com/finbooks-io/ledger-core/internal/ledger"
	"github.com/finbooks-io/ledger-core/internal/models"
	"github.com/finbooks-io/ledger-core/internal/money"
	"github.com/finbooks-io/ledger-core/internal/storage"
)

// storeState holds every table of the in-memory ledger. Transactions are
// implemented by snapshotting the whole state on begin and restoring it on
// rollback, which gives the same all-or-nothing visibility a database
// transaction would.
type storeState struct {
	nextID       int64
	currencies   map[string]models.LedgerCurrency // by code
	ledgers      map[string]models.Ledger         // by slug
	accountTypes []models.LedgerAccountType
	assignments  map[[2]int64]struct{} // (ledgerID, accountTypeID)
	accounts     []models.LedgerAccount
	transactions []models.PersistedTransaction
	entries      []models.PersistedEntry
}

func newState() storeState {
	return storeState{
		currencies:  make(map[string]models.LedgerCurrency),
		ledgers:     make(map[string]models.Ledger),
		assignments: make(map[[2]int64]struct{}),
	}
}

func (s storeState) clone() storeState {
	return storeState{
		nextID:       s.nextID,
		currencies:   maps.Clone(s.currencies),
		ledgers:      maps.Clone(s.ledgers),
		accountTypes: slices.Clone(s.accountTypes),
		assignments:  maps.Clone(s.assignments),
		accounts:     slices.Clone(s.accounts),
		transactions: slices.Clone(s.transactions),
		entries:      slices.Clone(s.entries),
	}
}

// MemoryLedgerStore is an in-memory implementation of
// interfaces.LedgerStorage. It backs the tests and the demo server when no
// database is configured.
type MemoryLedgerStore struct {
	mu          sync.Mutex
	state       storeState
	snapshot    *storeState // non-nil while a transaction is active
	lastPosting storage.PostingState
}

// NewMemoryLedgerStore creates an empty in-memory ledger store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{state: newState(), lastPosting: storage.PostingPending}
}

func (m *MemoryLedgerStore) nextID() int64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *MemoryLedgerStore) InsertLedger(ctx context.Context, in models.NewLedger) (*models.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.state.ledgers[in.Slug]; exists {
		return nil, fmt.Errorf("ledger slug %q already exists", in.Slug)
	}
	l := models.Ledger{
		ID:               m.nextID(),
		Slug:             in.Slug,
		Name:             in.Name,
		Description:      in.Description,
		LedgerCurrencyID: in.LedgerCurrencyID,
	}
	m.state.ledgers[in.Slug] = l
	return &l, nil
}

func (m *MemoryLedgerStore) InsertCurrency(ctx context.Context, in models.NewCurrency) (*models.LedgerCurrency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.state.currencies[in.Code]; exists {
		return nil, fmt.Errorf("currency %q: %w", in.Code, interfaces.ErrDuplicateCurrencyCode)
	}
	c := models.LedgerCurrency{
		ID:                    m.nextID(),
		Code:                  in.Code,
		MinimumFractionDigits: in.MinimumFractionDigits,
		Symbol:                in.Symbol,
	}
	m.state.currencies[in.Code] = c
	return &c, nil
}

func (m *MemoryLedgerStore) InsertAccountType(ctx context.Context, in models.NewAccountType) (*models.LedgerAccountType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, at := range m.state.accountTypes {
		if at.Slug == in.Slug && !at.IsEntityLedgerAccount {
			return nil, fmt.Errorf("account type %q: %w", in.Slug, interfaces.ErrAccountTypeExists)
		}
	}
	if in.ParentLedgerAccountTypeID != nil {
		parent := m.accountTypeByID(*in.ParentLedgerAccountTypeID)
		if parent == nil {
			return nil, fmt.Errorf("parent %d: %w", *in.ParentLedgerAccountTypeID, interfaces.ErrParentAccountTypeNotFound)
		}
		if parent.NormalBalance != in.NormalBalance {
			return nil, fmt.Errorf("account type %q: %w", in.Slug, interfaces.ErrNormalBalanceMismatch)
		}
	}
	at := models.LedgerAccountType{
		ID:                        m.nextID(),
		Slug:                      in.Slug,
		Name:                      in.Name,
		Description:               in.Description,
		NormalBalance:             in.NormalBalance,
		IsEntityLedgerAccount:     in.IsEntityLedgerAccount,
		ParentLedgerAccountTypeID: in.ParentLedgerAccountTypeID,
	}
	m.state.accountTypes = append(m.state.accountTypes, at)
	return &at, nil
}

func (m *MemoryLedgerStore) AssignAccountTypeToLedger(ctx context.Context, ledgerID, accountTypeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]int64{ledgerID, accountTypeID}
	if _, exists := m.state.assignments[key]; exists {
		return fmt.Errorf("ledger %d, account type %d: %w", ledgerID, accountTypeID, interfaces.ErrDuplicateAssignment)
	}
	m.state.assignments[key] = struct{}{}
	return nil
}

func (m *MemoryLedgerStore) InsertAccount(ctx context.Context, in models.NewAccount) (*models.LedgerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accountTypeByID(in.LedgerAccountTypeID) == nil {
		return nil, fmt.Errorf("account type %d: %w", in.LedgerAccountTypeID, interfaces.ErrAccountTypeNotFound)
	}
	return m.insertAccountLocked(in)
}

func (m *MemoryLedgerStore) insertAccountLocked(in models.NewAccount) (*models.LedgerAccount, error) {
	for _, a := range m.state.accounts {
		if a.LedgerID == in.LedgerID && a.Slug == in.Slug {
			return nil, fmt.Errorf("account %q: %w", in.Slug, interfaces.ErrDuplicateAccountSlug)
		}
	}
	a := models.LedgerAccount{
		ID:                  m.nextID(),
		LedgerID:            in.LedgerID,
		LedgerAccountTypeID: in.LedgerAccountTypeID,
		Slug:                in.Slug,
		Description:         in.Description,
	}
	m.state.accounts = append(m.state.accounts, a)
	return &a, nil
}

func (m *MemoryLedgerStore) FindAccount(ctx context.Context, ref ledger.AccountRef) (*models.LedgerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.state.ledgers[ref.LedgerSlug()]
	if !ok {
		return nil, nil
	}
	return m.findAccountLocked(l.ID, ref.AccountSlug()), nil
}

func (m *MemoryLedgerStore) findAccountLocked(ledgerID int64, slug string) *models.LedgerAccount {
	for _, a := range m.state.accounts {
		if a.LedgerID == ledgerID && a.Slug == slug {
			found := a
			return &found
		}
	}
	return nil
}

func (m *MemoryLedgerStore) FindAccountTypeBySlug(ctx context.Context, slug string) (*models.LedgerAccountType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, at := range m.state.accountTypes {
		if at.Slug == slug {
			found := at
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryLedgerStore) FindEntityAccountTypes(ctx context.Context, ledgerID int64) ([]models.LedgerAccountType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.LedgerAccountType
	for _, at := range m.state.accountTypes {
		if !at.IsEntityLedgerAccount {
			continue
		}
		if _, assigned := m.state.assignments[[2]int64{ledgerID, at.ID}]; assigned {
			out = append(out, at)
		}
	}
	return out, nil
}

func (m *MemoryLedgerStore) FindSystemAccounts(ctx context.Context, ledgerID int64) ([]models.LedgerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.LedgerAccount
	for _, a := range m.state.accounts {
		if a.LedgerID != ledgerID {
			continue
		}
		at := m.accountTypeByID(a.LedgerAccountTypeID)
		if at != nil && !at.IsEntityLedgerAccount {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryLedgerStore) GetLedgerIDBySlug(ctx context.Context, slug string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.state.ledgers[slug]
	if !ok {
		return 0, fmt.Errorf("ledger %q: %w", slug, interfaces.ErrLedgerNotFound)
	}
	return l.ID, nil
}

func (m *MemoryLedgerStore) GetLedgerCurrency(ctx context.Context, ledgerID int64) (*models.LedgerCurrency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledgerCurrencyLocked(ledgerID)
}

func (m *MemoryLedgerStore) ledgerCurrencyLocked(ledgerID int64) (*models.LedgerCurrency, error) {
	for _, l := range m.state.ledgers {
		if l.ID != ledgerID {
			continue
		}
		for _, c := range m.state.currencies {
			if c.ID == l.LedgerCurrencyID {
				found := c
				return &found, nil
			}
		}
	}
	return nil, fmt.Errorf("ledger %d: %w", ledgerID, interfaces.ErrLedgerNotFound)
}

func (m *MemoryLedgerStore) FetchAccountBalance(ctx context.Context, ref ledger.AccountRef) (money.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.state.ledgers[ref.LedgerSlug()]
	if !ok {
		return money.Unit{}, fmt.Errorf("ledger %q: %w", ref.LedgerSlug(), interfaces.ErrLedgerNotFound)
	}
	account := m.findAccountLocked(l.ID, ref.AccountSlug())
	if account == nil {
		return money.Unit{}, fmt.Errorf("account %q: %w", ref.AccountSlug(), interfaces.ErrAccountNotFound)
	}
	at := m.accountTypeByID(account.LedgerAccountTypeID)
	currency, err := m.ledgerCurrencyLocked(l.ID)
	if err != nil {
		return money.Unit{}, err
	}

	// Signed sum: entries posted on the account's normal balance side
	// increase the balance, the opposite side decreases it.
	balance := money.Zero(currency.Code, currency.MinimumFractionDigits)
	for _, e := range m.state.entries {
		if e.LedgerAccountID != account.ID {
			continue
		}
		amount := money.FromDecimal(e.Amount, currency.Code, currency.MinimumFractionDigits)
		if e.Action == string(at.NormalBalance) {
			balance = balance.Add(amount)
		} else {
			balance = balance.Sub(amount)
		}
	}
	return balance, nil
}

func (m *MemoryLedgerStore) GetTransactionByID(ctx context.Context, id int64) (*models.PersistedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range m.state.transactions {
		if tx.ID == id {
			found := tx
			return &found, nil
		}
	}
	return nil, fmt.Errorf("transaction %d: %w", id, interfaces.ErrTransactionNotFound)
}

func (m *MemoryLedgerStore) GetTransactionEntries(ctx context.Context, id int64) ([]models.PersistedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var parent *models.PersistedTransaction
	for _, tx := range m.state.transactions {
		if tx.ID == id {
			found := tx
			parent = &found
			break
		}
	}
	if parent == nil {
		return nil, fmt.Errorf("transaction %d: %w", id, interfaces.ErrTransactionNotFound)
	}
	currency, err := m.ledgerCurrencyLocked(parent.LedgerID)
	if err != nil {
		return nil, err
	}

	var out []models.PersistedEntry
	for _, e := range m.state.entries {
		if e.TransactionID != id {
			continue
		}
		e.Unit = money.FromDecimal(e.Amount, currency.Code, currency.MinimumFractionDigits)
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryLedgerStore) accountTypeByID(id int64) *models.LedgerAccountType {
	for _, at := range m.state.accountTypes {
		if at.ID == id {
			found := at
			return &found
		}
	}
	return nil
}

// Begin starts a caller-controlled transaction by snapshotting the store.
func (m *MemoryLedgerStore) Begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot != nil {
		return interfaces.ErrTransactionActive
	}
	snap := m.state.clone()
	m.snapshot = &snap
	return nil
}

// Commit makes the writes since Begin permanent.
func (m *MemoryLedgerStore) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil {
		return interfaces.ErrNoActiveTransaction
	}
	m.snapshot = nil
	return nil
}

// Rollback restores the state captured by Begin.
func (m *MemoryLedgerStore) Rollback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil {
		return interfaces.ErrNoActiveTransaction
	}
	m.state = *m.snapshot
	m.snapshot = nil
	return nil
}

// Release is a no-op: the memory store holds no connection resource.
func (m *MemoryLedgerStore) Release() error {
	return nil
}

// InsertTransaction posts a balanced transaction. When no transaction is
// active the store owns the boundary: a failure partway restores the state
// captured at entry, so no transaction or entry rows stay visible. When the
// caller began a transaction the writes execute inline and the caller's
// commit or rollback decides.
func (m *MemoryLedgerStore) InsertTransaction(ctx context.Context, tx ledger.Transaction) (*models.PersistedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.state.ledgers[tx.LedgerSlug]
	if !ok {
		return nil, fmt.Errorf("ledger %q: %w", tx.LedgerSlug, interfaces.ErrLedgerNotFound)
	}
	currency, err := m.ledgerCurrencyLocked(l.ID)
	if err != nil {
		return nil, err
	}

	ownsBoundary := m.snapshot == nil
	m.lastPosting = storage.PostingRunning
	var checkpoint storeState
	if ownsBoundary {
		checkpoint = m.state.clone()
	}

	persisted, err := m.insertTransactionLocked(l.ID, currency, tx)
	if err != nil {
		if ownsBoundary {
			m.state = checkpoint
			m.lastPosting = storage.PostingRolledBack
		}
		return nil, err
	}
	if ownsBoundary {
		m.lastPosting = storage.PostingCommitted
	}
	return persisted, nil
}

// LastPostingState reports where the most recent InsertTransaction call
// ended up in the posting lifecycle. Running means the store did not own the
// transaction boundary and the owner decides.
func (m *MemoryLedgerStore) LastPostingState() storage.PostingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPosting
}

func (m *MemoryLedgerStore) insertTransactionLocked(ledgerID int64, currency *models.LedgerCurrency, tx ledger.Transaction) (*models.PersistedTransaction, error) {
	persisted := models.PersistedTransaction{
		ID:          m.nextID(),
		LedgerID:    ledgerID,
		Description: tx.Description,
		PostedAt:    tx.PostedAt,
		CreatedAt:   time.Now().UTC(),
	}
	m.state.transactions = append(m.state.transactions, persisted)

	for entry := range tx.Entries.FlatEntries() {
		accountID, err := m.resolveAccountLocked(ledgerID, entry.Account)
		if err != nil {
			return nil, err
		}
		m.state.entries = append(m.state.entries, models.PersistedEntry{
			ID:              m.nextID(),
			TransactionID:   persisted.ID,
			LedgerAccountID: accountID,
			Action:          string(entry.Action),
			Amount:          entry.Amount.Amount(),
			Unit:            money.FromDecimal(entry.Amount.Amount(), currency.Code, currency.MinimumFractionDigits),
			CreatedAt:       persisted.CreatedAt,
		})
	}
	return &persisted, nil
}

// resolveAccountLocked maps a reference to a persisted account id. System
// accounts must already exist. Entity accounts are provisioned on first use
// under the entity-scoped account type the reference names; repeated
// resolution always yields the same id.
func (m *MemoryLedgerStore) resolveAccountLocked(ledgerID int64, ref ledger.AccountRef) (int64, error) {
	if existing := m.findAccountLocked(ledgerID, ref.AccountSlug()); existing != nil {
		return existing.ID, nil
	}
	entityRef, ok := ref.(ledger.EntityAccountRef)
	if !ok {
		return 0, fmt.Errorf("system account %q: %w", ref.AccountSlug(), interfaces.ErrAccountNotFound)
	}

	var accountType *models.LedgerAccountType
	for _, at := range m.state.accountTypes {
		if at.Slug == entityRef.Name() && at.IsEntityLedgerAccount {
			if _, assigned := m.state.assignments[[2]int64{ledgerID, at.ID}]; assigned {
				found := at
				accountType = &found
				break
			}
		}
	}
	if accountType == nil {
		return 0, fmt.Errorf("entity account type %q: %w", entityRef.Name(), interfaces.ErrAccountTypeNotFound)
	}
	account, err := m.insertAccountLocked(models.NewAccount{
		LedgerID:            ledgerID,
		LedgerAccountTypeID: accountType.ID,
		Slug:                entityRef.AccountSlug(),
	})
	if err != nil {
		return 0, err
	}
	return account.ID, nil
}

// Compile-time check: the memory store implements the storage contract.
var _ interfaces.LedgerStorage = (*MemoryLedgerStore)(nil)
