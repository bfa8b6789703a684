package postgres

import (
	"errors"
	"fmt"

	"github.com/finbooks-io/ledger-core/internal/interfaces"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// translateConflict maps the persistence layer's uniqueness violations onto
// the domain conflict errors by constraint name. Any other failure
// propagates unmodified.
func translateConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "ledger_currencies_code_key":
		return fmt.Errorf("%w: %v", interfaces.ErrDuplicateCurrencyCode, err)
	case "ledger_accounts_ledger_id_slug_key":
		return fmt.Errorf("%w: %v", interfaces.ErrDuplicateAccountSlug, err)
	case "ledger_account_types_slug_key":
		return fmt.Errorf("%w: %v", interfaces.ErrAccountTypeExists, err)
	case "ledgers_ledger_account_types_pkey":
		return fmt.Errorf("%w: %v", interfaces.ErrDuplicateAssignment, err)
	default:
		return err
	}
}
