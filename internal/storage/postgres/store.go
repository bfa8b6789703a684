package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finbooks-io/ledger-core/internal/interfaces"
	"github.com/finbooks-io/ledger-core/internal/ledger"
	"github.com/finbooks-io/ledger-core/internal/models"
	"github.com/finbooks-io/ledger-core/internal/money"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// querier is the read/write surface shared by *sql.Conn and *sql.Tx. The
// store runs every statement through it so the same code serves both a
// self-managed and a caller-managed transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres implementation of interfaces.LedgerStorage. Each
// store owns exactly one connection and is not safe for concurrent use;
// callers needing concurrency open separate stores.
type Store struct {
	conn     *sql.Conn // owned connection; nil when participating in a caller transaction
	callerTx *sql.Tx   // caller-supplied transaction; nil otherwise
	tx       *sql.Tx   // transaction this store started; nil otherwise
	manage   bool      // fixed at construction
	released bool
	log      *logrus.Entry
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger sets the logger the store writes through.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// WithManagedTransactions controls whether the store starts, commits and
// rolls back its own transaction around InsertTransaction. Default true.
// The flag never changes for the life of the store. An unmanaged store only
// posts inside a transaction the caller opened with Begin.
func WithManagedTransactions(manage bool) Option {
	return func(s *Store) { s.manage = manage }
}

// Open acquires a dedicated connection from the pool and returns a store
// that manages its own transactions unless configured otherwise.
func Open(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	s := &Store{
		conn:   conn,
		manage: true,
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewStoreWithTx returns a store that participates in the caller's
// transaction: it never begins, commits or rolls back, and Release holds
// nothing. Callers integrating ledger posting into a larger unit of work use
// this constructor.
func NewStoreWithTx(tx *sql.Tx, opts ...Option) *Store {
	s := &Store{
		callerTx: tx,
		manage:   false,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.manage = false // participation is fixed, options cannot flip it
	return s
}

// q returns the querier for the currently active scope.
func (s *Store) q() querier {
	switch {
	case s.tx != nil:
		return s.tx
	case s.callerTx != nil:
		return s.callerTx
	default:
		return s.conn
	}
}

// txActive reports whether a transaction is already active on the store's
// connection, either caller-managed or started by the store itself. Checked
// before every boundary-owning operation.
func (s *Store) txActive() bool {
	return s.tx != nil || s.callerTx != nil
}

// Begin starts a caller-controlled transaction on the store's connection.
func (s *Store) Begin(ctx context.Context) error {
	if s.conn == nil {
		return interfaces.ErrTransactionsUnmanaged
	}
	if s.txActive() {
		return interfaces.ErrTransactionActive
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

// Commit commits the transaction started by Begin.
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return interfaces.ErrNoActiveTransaction
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// Rollback rolls back the transaction started by Begin.
func (s *Store) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return interfaces.ErrNoActiveTransaction
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

// Release returns the owned connection to the pool. Safe to call multiple
// times; a participating store holds nothing and Release is a no-op.
func (s *Store) Release() error {
	if s.released || s.conn == nil {
		return nil
	}
	s.released = true
	return s.conn.Close()
}

func (s *Store) InsertLedger(ctx context.Context, in models.NewLedger) (*models.Ledger, error) {
	const query = `INSERT INTO ledgers (slug, name, description, ledger_currency_id)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	l := models.Ledger{
		Slug:             in.Slug,
		Name:             in.Name,
		Description:      in.Description,
		LedgerCurrencyID: in.LedgerCurrencyID,
	}
	if err := s.q().QueryRowContext(ctx, query, in.Slug, in.Name, in.Description, in.LedgerCurrencyID).Scan(&l.ID); err != nil {
		return nil, translateConflict(err)
	}
	return &l, nil
}

func (s *Store) InsertCurrency(ctx context.Context, in models.NewCurrency) (*models.LedgerCurrency, error) {
	const query = `INSERT INTO ledger_currencies (code, minimum_fraction_digits, symbol)
	VALUES ($1, $2, $3)
	RETURNING id`

	c := models.LedgerCurrency{
		Code:                  in.Code,
		MinimumFractionDigits: in.MinimumFractionDigits,
		Symbol:                in.Symbol,
	}
	if err := s.q().QueryRowContext(ctx, query, in.Code, in.MinimumFractionDigits, in.Symbol).Scan(&c.ID); err != nil {
		return nil, translateConflict(err)
	}
	return &c, nil
}

func (s *Store) InsertAccountType(ctx context.Context, in models.NewAccountType) (*models.LedgerAccountType, error) {
	const existsQuery = `SELECT 1 FROM ledger_account_types
	WHERE slug = $1 AND NOT is_entity_ledger_account
	LIMIT 1`

	var one int
	err := s.q().QueryRowContext(ctx, existsQuery, in.Slug).Scan(&one)
	if err == nil {
		return nil, fmt.Errorf("account type %q: %w", in.Slug, interfaces.ErrAccountTypeExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if in.ParentLedgerAccountTypeID != nil {
		const parentQuery = `SELECT normal_balance FROM ledger_account_types WHERE id = $1`

		var parentBalance models.NormalBalance
		err := s.q().QueryRowContext(ctx, parentQuery, *in.ParentLedgerAccountTypeID).Scan(&parentBalance)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parent %d: %w", *in.ParentLedgerAccountTypeID, interfaces.ErrParentAccountTypeNotFound)
		}
		if err != nil {
			return nil, err
		}
		if parentBalance != in.NormalBalance {
			return nil, fmt.Errorf("account type %q: %w", in.Slug, interfaces.ErrNormalBalanceMismatch)
		}
	}

	const insertQuery = `INSERT INTO ledger_account_types
	(slug, name, description, normal_balance, is_entity_ledger_account, parent_ledger_account_type_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	at := models.LedgerAccountType{
		Slug:                      in.Slug,
		Name:                      in.Name,
		Description:               in.Description,
		NormalBalance:             in.NormalBalance,
		IsEntityLedgerAccount:     in.IsEntityLedgerAccount,
		ParentLedgerAccountTypeID: in.ParentLedgerAccountTypeID,
	}
	err = s.q().QueryRowContext(ctx, insertQuery,
		in.Slug, in.Name, in.Description, in.NormalBalance, in.IsEntityLedgerAccount, in.ParentLedgerAccountTypeID,
	).Scan(&at.ID)
	if err != nil {
		return nil, translateConflict(err)
	}
	return &at, nil
}

func (s *Store) AssignAccountTypeToLedger(ctx context.Context, ledgerID, accountTypeID int64) error {
	const query = `INSERT INTO ledgers_ledger_account_types (ledger_id, ledger_account_type_id)
	VALUES ($1, $2)`

	if _, err := s.q().ExecContext(ctx, query, ledgerID, accountTypeID); err != nil {
		return translateConflict(err)
	}
	return nil
}

func (s *Store) InsertAccount(ctx context.Context, in models.NewAccount) (*models.LedgerAccount, error) {
	const typeQuery = `SELECT 1 FROM ledger_account_types WHERE id = $1`

	var one int
	err := s.q().QueryRowContext(ctx, typeQuery, in.LedgerAccountTypeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account type %d: %w", in.LedgerAccountTypeID, interfaces.ErrAccountTypeNotFound)
	}
	if err != nil {
		return nil, err
	}

	const insertQuery = `INSERT INTO ledger_accounts (ledger_id, ledger_account_type_id, slug, description)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	a := models.LedgerAccount{
		LedgerID:            in.LedgerID,
		LedgerAccountTypeID: in.LedgerAccountTypeID,
		Slug:                in.Slug,
		Description:         in.Description,
	}
	err = s.q().QueryRowContext(ctx, insertQuery, in.LedgerID, in.LedgerAccountTypeID, in.Slug, in.Description).Scan(&a.ID)
	if err != nil {
		return nil, translateConflict(err)
	}
	return &a, nil
}

func (s *Store) FindAccount(ctx context.Context, ref ledger.AccountRef) (*models.LedgerAccount, error) {
	const query = `SELECT a.id, a.ledger_id, a.ledger_account_type_id, a.slug, a.description
	FROM ledger_accounts a
	JOIN ledgers l ON l.id = a.ledger_id
	WHERE l.slug = $1 AND a.slug = $2`

	var a models.LedgerAccount
	err := s.q().QueryRowContext(ctx, query, ref.LedgerSlug(), ref.AccountSlug()).
		Scan(&a.ID, &a.LedgerID, &a.LedgerAccountTypeID, &a.Slug, &a.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) FindAccountTypeBySlug(ctx context.Context, slug string) (*models.LedgerAccountType, error) {
	const query = `SELECT id, slug, name, description, normal_balance, is_entity_ledger_account, parent_ledger_account_type_id
	FROM ledger_account_types
	WHERE slug = $1
	LIMIT 1`

	var at models.LedgerAccountType
	err := s.q().QueryRowContext(ctx, query, slug).
		Scan(&at.ID, &at.Slug, &at.Name, &at.Description, &at.NormalBalance, &at.IsEntityLedgerAccount, &at.ParentLedgerAccountTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (s *Store) FindEntityAccountTypes(ctx context.Context, ledgerID int64) ([]models.LedgerAccountType, error) {
	const query = `SELECT t.id, t.slug, t.name, t.description, t.normal_balance, t.is_entity_ledger_account, t.parent_ledger_account_type_id
	FROM ledger_account_types t
	JOIN ledgers_ledger_account_types j ON j.ledger_account_type_id = t.id
	WHERE j.ledger_id = $1 AND t.is_entity_ledger_account
	ORDER BY t.id`

	rows, err := s.q().QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerAccountType
	for rows.Next() {
		var at models.LedgerAccountType
		if err := rows.Scan(&at.ID, &at.Slug, &at.Name, &at.Description, &at.NormalBalance, &at.IsEntityLedgerAccount, &at.ParentLedgerAccountTypeID); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

func (s *Store) FindSystemAccounts(ctx context.Context, ledgerID int64) ([]models.LedgerAccount, error) {
	const query = `SELECT a.id, a.ledger_id, a.ledger_account_type_id, a.slug, a.description
	FROM ledger_accounts a
	JOIN ledger_account_types t ON t.id = a.ledger_account_type_id
	WHERE a.ledger_id = $1 AND NOT t.is_entity_ledger_account
	ORDER BY a.id`

	rows, err := s.q().QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerAccount
	for rows.Next() {
		var a models.LedgerAccount
		if err := rows.Scan(&a.ID, &a.LedgerID, &a.LedgerAccountTypeID, &a.Slug, &a.Description); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetLedgerIDBySlug(ctx context.Context, slug string) (int64, error) {
	const query = `SELECT id FROM ledgers WHERE slug = $1`

	var id int64
	err := s.q().QueryRowContext(ctx, query, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ledger %q: %w", slug, interfaces.ErrLedgerNotFound)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetLedgerCurrency(ctx context.Context, ledgerID int64) (*models.LedgerCurrency, error) {
	const query = `SELECT c.id, c.code, c.minimum_fraction_digits, c.symbol
	FROM ledger_currencies c
	JOIN ledgers l ON l.ledger_currency_id = c.id
	WHERE l.id = $1`

	var c models.LedgerCurrency
	err := s.q().QueryRowContext(ctx, query, ledgerID).Scan(&c.ID, &c.Code, &c.MinimumFractionDigits, &c.Symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger %d: %w", ledgerID, interfaces.ErrLedgerNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) FetchAccountBalance(ctx context.Context, ref ledger.AccountRef) (money.Unit, error) {
	account, err := s.FindAccount(ctx, ref)
	if err != nil {
		return money.Unit{}, err
	}
	if account == nil {
		return money.Unit{}, fmt.Errorf("account %q: %w", ref.AccountSlug(), interfaces.ErrAccountNotFound)
	}
	currency, err := s.GetLedgerCurrency(ctx, account.LedgerID)
	if err != nil {
		return money.Unit{}, err
	}

	// Entries on the account's normal balance side count positive, the
	// opposite side negative. The aggregation sees only committed entries
	// at read-committed or stronger isolation.
	const query = `SELECT COALESCE(SUM(CASE WHEN e.action = t.normal_balance THEN e.amount ELSE -e.amount END), 0)
	FROM ledger_transaction_entries e
	JOIN ledger_accounts a ON a.id = e.ledger_account_id
	JOIN ledger_account_types t ON t.id = a.ledger_account_type_id
	WHERE e.ledger_account_id = $1`

	var raw string
	if err := s.q().QueryRowContext(ctx, query, account.ID).Scan(&raw); err != nil {
		return money.Unit{}, err
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Unit{}, fmt.Errorf("decode balance %q: %w", raw, err)
	}
	return money.FromDecimal(balance, currency.Code, currency.MinimumFractionDigits), nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id int64) (*models.PersistedTransaction, error) {
	const query = `SELECT id, ledger_id, description, posted_at, created_at
	FROM ledger_transactions
	WHERE id = $1`

	var tx models.PersistedTransaction
	err := s.q().QueryRowContext(ctx, query, id).Scan(&tx.ID, &tx.LedgerID, &tx.Description, &tx.PostedAt, &tx.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, interfaces.ErrTransactionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) GetTransactionEntries(ctx context.Context, id int64) ([]models.PersistedEntry, error) {
	parent, err := s.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	currency, err := s.GetLedgerCurrency(ctx, parent.LedgerID)
	if err != nil {
		return nil, err
	}

	const query = `SELECT id, ledger_transaction_id, ledger_account_id, action, amount, created_at
	FROM ledger_transaction_entries
	WHERE ledger_transaction_id = $1
	ORDER BY id`

	rows, err := s.q().QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PersistedEntry
	for rows.Next() {
		var (
			e   models.PersistedEntry
			raw string
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.LedgerAccountID, &e.Action, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Amount, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", raw, err)
		}
		e.Unit = money.FromDecimal(e.Amount, currency.Code, currency.MinimumFractionDigits)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Compile-time check: the postgres store implements the storage contract.
var _ interfaces.LedgerStorage = (*Store)(nil)
