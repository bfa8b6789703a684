package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// RefType tags the two kinds of account reference.
type RefType string

const (
	// RefTypeSystem addresses a preset account registered up front.
	RefTypeSystem RefType = "SYSTEM"
	// RefTypeEntity addresses an account provisioned on first use for an
	// external entity.
	RefTypeEntity RefType = "ENTITY"
)

// AccountRef identifies an account within a ledger by name. A reference is
// purely a name: whether the underlying account exists, and provisioning it
// on demand for entity references, is the storage layer's job.
//
// The variant set is closed: SystemAccountRef and EntityAccountRef are the
// only implementations.
type AccountRef interface {
	LedgerSlug() string
	AccountSlug() string
	Type() RefType
}

// accountNamePattern: letters/digits/underscores/hyphens, non-empty, starting
// and ending alphanumeric.
var accountNamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9_-]*[A-Za-z0-9])?$`)

func validateAccountName(name string) error {
	if name == "" {
		return ErrAccountNameEmpty
	}
	if !accountNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrAccountNameInvalid, name)
	}
	return nil
}

// SystemAccountRef addresses a preset account. Its account slug is the name
// itself.
type SystemAccountRef struct {
	ledgerSlug string
	name       string
}

// NewSystemAccountRef validates the name and returns a reference to a system
// account in the given ledger.
func NewSystemAccountRef(ledgerSlug, name string) (SystemAccountRef, error) {
	if err := validateAccountName(name); err != nil {
		return SystemAccountRef{}, err
	}
	return SystemAccountRef{ledgerSlug: ledgerSlug, name: name}, nil
}

func (r SystemAccountRef) LedgerSlug() string  { return r.ledgerSlug }
func (r SystemAccountRef) AccountSlug() string { return r.name }
func (r SystemAccountRef) Type() RefType       { return RefTypeSystem }

// EntityAccountRef addresses a dynamically provisioned account identified by
// the entity account type name plus an external identifier. Its account slug
// is "name:externalID"; the colon is the separator, so neither component may
// contain one.
type EntityAccountRef struct {
	ledgerSlug string
	name       string
	externalID string
}

// NewEntityAccountRef validates the name and external id and returns a
// reference to an entity account in the given ledger. The external id must be
// non-blank and contain no whitespace or colon.
func NewEntityAccountRef(ledgerSlug, name, externalID string) (EntityAccountRef, error) {
	if err := validateAccountName(name); err != nil {
		return EntityAccountRef{}, err
	}
	if err := validateExternalID(externalID); err != nil {
		return EntityAccountRef{}, err
	}
	return EntityAccountRef{ledgerSlug: ledgerSlug, name: name, externalID: externalID}, nil
}

// NewEntityAccountRefFromID builds an entity reference from a numeric
// external identifier.
func NewEntityAccountRefFromID(ledgerSlug, name string, externalID int64) (EntityAccountRef, error) {
	return NewEntityAccountRef(ledgerSlug, name, strconv.FormatInt(externalID, 10))
}

func validateExternalID(externalID string) error {
	if strings.TrimSpace(externalID) == "" {
		return fmt.Errorf("%w: must not be blank", ErrInvalidExternalID)
	}
	if strings.Contains(externalID, ":") || strings.ContainsFunc(externalID, unicode.IsSpace) {
		return fmt.Errorf("%w: %q must not contain whitespace or ':'", ErrInvalidExternalID, externalID)
	}
	return nil
}

func (r EntityAccountRef) LedgerSlug() string  { return r.ledgerSlug }
func (r EntityAccountRef) AccountSlug() string { return r.name + ":" + r.externalID }
func (r EntityAccountRef) Type() RefType       { return RefTypeEntity }

// Name returns the entity account type name component of the reference.
func (r EntityAccountRef) Name() string { return r.name }

// ExternalID returns the external identifier component of the reference.
func (r EntityAccountRef) ExternalID() string { return r.externalID }
