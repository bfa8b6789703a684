package ledger

import (
	"fmt"
	"iter"

	"github.com/finbooks-io/ledger-core/internal/money"
	"github.com/shopspring/decimal"
)

// Direction is the side of an account an entry posts to.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// Entry is a single debit or credit of an amount against an account.
type Entry struct {
	Account AccountRef
	Action  Direction
	Amount  money.Unit
}

// NewEntry builds an entry with no direction yet; NewDoubleEntry assigns the
// direction from the side the entry is placed on.
func NewEntry(account AccountRef, amount money.Unit) Entry {
	return Entry{Account: account, Amount: amount}
}

// DoubleEntry pairs one or more debits with one or more credits whose totals
// per currency match exactly.
type DoubleEntry struct {
	debits  []Entry
	credits []Entry
}

// NewDoubleEntry validates that for every currency appearing on either side
// the debit and credit totals are exactly equal, and returns the balanced
// group. A currency present on only one side, or unequal totals, fails with
// ErrUnbalancedEntry. Entry directions are assigned from the side each entry
// is placed on.
func NewDoubleEntry(debits []Entry, credits []Entry) (DoubleEntry, error) {
	de := DoubleEntry{
		debits:  make([]Entry, len(debits)),
		credits: make([]Entry, len(credits)),
	}
	for i, e := range debits {
		e.Action = Debit
		de.debits[i] = e
	}
	for i, e := range credits {
		e.Action = Credit
		de.credits[i] = e
	}

	type sideTotals struct {
		debit, credit     decimal.Decimal
		onDebit, onCredit bool
	}
	totals := map[string]*sideTotals{}
	for _, e := range de.debits {
		t := totals[e.Amount.CurrencyCode()]
		if t == nil {
			t = &sideTotals{}
			totals[e.Amount.CurrencyCode()] = t
		}
		t.debit = t.debit.Add(e.Amount.Amount())
		t.onDebit = true
	}
	for _, e := range de.credits {
		t := totals[e.Amount.CurrencyCode()]
		if t == nil {
			t = &sideTotals{}
			totals[e.Amount.CurrencyCode()] = t
		}
		t.credit = t.credit.Add(e.Amount.Amount())
		t.onCredit = true
	}
	for currency, t := range totals {
		// Presence on both sides is required even when the totals agree,
		// so a zero-amount entry cannot smuggle a currency onto one side.
		if !t.onDebit || !t.onCredit {
			return DoubleEntry{}, fmt.Errorf("%w: %s appears on one side only",
				ErrUnbalancedEntry, currency)
		}
		if !t.debit.Equal(t.credit) {
			return DoubleEntry{}, fmt.Errorf("%w: %s debits %s != credits %s",
				ErrUnbalancedEntry, currency, t.debit.String(), t.credit.String())
		}
	}
	return de, nil
}

// Debits returns the debit side in construction order.
func (d DoubleEntry) Debits() []Entry { return d.debits }

// Credits returns the credit side in construction order.
func (d DoubleEntry) Credits() []Entry { return d.credits }

// TransactionDoubleEntries is an immutable ordered collection of double
// entries. Push returns a new collection and never mutates the receiver.
type TransactionDoubleEntries struct {
	items []DoubleEntry
}

// DoubleEntries builds a collection from the given double entries.
func DoubleEntries(items ...DoubleEntry) TransactionDoubleEntries {
	out := make([]DoubleEntry, len(items))
	copy(out, items)
	return TransactionDoubleEntries{items: out}
}

// Push returns a new collection with de appended. The receiver is unchanged.
func (t TransactionDoubleEntries) Push(de DoubleEntry) TransactionDoubleEntries {
	out := make([]DoubleEntry, len(t.items), len(t.items)+1)
	copy(out, t.items)
	return TransactionDoubleEntries{items: append(out, de)}
}

// Len returns the number of double entries in the collection.
func (t TransactionDoubleEntries) Len() int { return len(t.items) }

// Items returns the double entries in push order.
func (t TransactionDoubleEntries) Items() []DoubleEntry {
	out := make([]DoubleEntry, len(t.items))
	copy(out, t.items)
	return out
}

// FlatEntries returns a lazy, restartable sequence of every entry across all
// double entries: debits then credits within each double entry, double
// entries in push order. The order is what the storage layer persists.
func (t TransactionDoubleEntries) FlatEntries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, de := range t.items {
			for _, e := range de.debits {
				if !yield(e) {
					return
				}
			}
			for _, e := range de.credits {
				if !yield(e) {
					return
				}
			}
		}
	}
}
