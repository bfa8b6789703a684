package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finbooks-io/ledger-core/internal/interfaces"
	"github.com/finbooks-io/ledger-core/internal/ledger"
	"github.com/finbooks-io/ledger-core/internal/models"
	"github.com/finbooks-io/ledger-core/internal/storage"
	"github.com/sirupsen/logrus"
)

// InsertTransaction posts a balanced transaction.
//
// The ledger is resolved by slug before any write. When the store manages
// its own transactions and none is active it owns the boundary: it begins a
// transaction, writes the transaction row and every entry in flattened
// order, and commits. When a transaction is already active (caller-managed
// or a nested call) the writes execute inline and the boundary owner
// decides; posting never double-starts or double-commits. Any failure inside
// an owned boundary rolls back before the original error is returned
// unmodified.
//
// An unmanaged store with no active transaction fails with
// ErrNoActiveTransaction: inline execution is only licensed inside a
// transaction, never in autocommit where a partial post could stick.
func (s *Store) InsertTransaction(ctx context.Context, tx ledger.Transaction) (*models.PersistedTransaction, error) {
	if !s.manage && !s.txActive() {
		return nil, interfaces.ErrNoActiveTransaction
	}

	ledgerID, err := s.GetLedgerIDBySlug(ctx, tx.LedgerSlug)
	if err != nil {
		return nil, err
	}

	ownsBoundary := s.manage && !s.txActive()
	state := storage.PostingPending
	log := s.log.WithFields(logrus.Fields{
		"ledger":         tx.LedgerSlug,
		"double_entries": tx.Entries.Len(),
		"owns_boundary":  ownsBoundary,
	})

	if ownsBoundary {
		if s.conn == nil {
			return nil, interfaces.ErrTransactionsUnmanaged
		}
		dbTx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		s.tx = dbTx
	}
	state = storage.PostingRunning

	persisted, err := s.writeTransaction(ctx, ledgerID, tx)
	if err != nil {
		if ownsBoundary {
			if rbErr := s.tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.WithError(rbErr).Error("rollback failed")
			}
			s.tx = nil
			state = storage.PostingRolledBack
		}
		log.WithError(err).WithField("state", state).Warn("transaction posting failed")
		return nil, err
	}

	if ownsBoundary {
		commitTx := s.tx
		s.tx = nil
		if err := commitTx.Commit(); err != nil {
			return nil, err
		}
		state = storage.PostingCommitted
	}
	log.WithFields(logrus.Fields{"transaction_id": persisted.ID, "state": state}).Debug("transaction posted")
	return persisted, nil
}

func (s *Store) writeTransaction(ctx context.Context, ledgerID int64, tx ledger.Transaction) (*models.PersistedTransaction, error) {
	const insertTx = `INSERT INTO ledger_transactions (ledger_id, description, posted_at)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

	persisted := models.PersistedTransaction{
		LedgerID:    ledgerID,
		Description: tx.Description,
		PostedAt:    tx.PostedAt,
	}
	err := s.q().QueryRowContext(ctx, insertTx, ledgerID, tx.Description, tx.PostedAt).
		Scan(&persisted.ID, &persisted.CreatedAt)
	if err != nil {
		return nil, err
	}

	const insertEntry = `INSERT INTO ledger_transaction_entries
	(ledger_transaction_id, ledger_account_id, action, amount)
	VALUES ($1, $2, $3, $4)`

	for entry := range tx.Entries.FlatEntries() {
		accountID, err := s.resolveAccount(ctx, ledgerID, entry.Account)
		if err != nil {
			return nil, err
		}
		_, err = s.q().ExecContext(ctx, insertEntry,
			persisted.ID, accountID, string(entry.Action), entry.Amount.FullPrecision())
		if err != nil {
			return nil, err
		}
	}
	return &persisted, nil
}

// resolveAccount maps an account reference to its persisted id. System
// accounts must already exist. Entity accounts are provisioned on first use
// under the entity-scoped account type named by the reference; the insert
// runs ON CONFLICT DO NOTHING followed by a re-select, so resolution is
// idempotent and safe when two transactions race on first use.
func (s *Store) resolveAccount(ctx context.Context, ledgerID int64, ref ledger.AccountRef) (int64, error) {
	const lookup = `SELECT id FROM ledger_accounts WHERE ledger_id = $1 AND slug = $2`

	var id int64
	err := s.q().QueryRowContext(ctx, lookup, ledgerID, ref.AccountSlug()).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	entityRef, ok := ref.(ledger.EntityAccountRef)
	if !ok {
		return 0, fmt.Errorf("system account %q: %w", ref.AccountSlug(), interfaces.ErrAccountNotFound)
	}

	const typeLookup = `SELECT t.id FROM ledger_account_types t
	JOIN ledgers_ledger_account_types j ON j.ledger_account_type_id = t.id
	WHERE j.ledger_id = $1 AND t.slug = $2 AND t.is_entity_ledger_account`

	var typeID int64
	err = s.q().QueryRowContext(ctx, typeLookup, ledgerID, entityRef.Name()).Scan(&typeID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("entity account type %q: %w", entityRef.Name(), interfaces.ErrAccountTypeNotFound)
	}
	if err != nil {
		return 0, err
	}

	const provision = `INSERT INTO ledger_accounts (ledger_id, ledger_account_type_id, slug, description)
	VALUES ($1, $2, $3, '')
	ON CONFLICT (ledger_id, slug) DO NOTHING
	RETURNING id`

	err = s.q().QueryRowContext(ctx, provision, ledgerID, typeID, entityRef.AccountSlug()).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	// Lost the race: another transaction provisioned the account first.
	if err := s.q().QueryRowContext(ctx, lookup, ledgerID, ref.AccountSlug()).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
