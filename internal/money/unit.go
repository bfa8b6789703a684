package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a Unit is constructed from a string that
// is not a well-formed decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

// Unit is an immutable money value: an exact decimal amount tagged with a
// currency code and that currency's minimum fraction digits.
//
// The amount is always kept at full precision. Rounding to the currency's
// fraction digits happens only when rendering for display, never for storage
// or arithmetic.
type Unit struct {
	amount       decimal.Decimal
	currencyCode string
	minDigits    int32
}

// New parses amount as an exact decimal and returns a Unit in the given
// currency. A malformed amount fails with ErrInvalidAmount.
func New(amount string, currencyCode string, minimumFractionDigits int32) (Unit, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Unit{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return Unit{amount: d, currencyCode: currencyCode, minDigits: minimumFractionDigits}, nil
}

// FromDecimal wraps an already-parsed decimal in a Unit.
func FromDecimal(amount decimal.Decimal, currencyCode string, minimumFractionDigits int32) Unit {
	return Unit{amount: amount, currencyCode: currencyCode, minDigits: minimumFractionDigits}
}

// Zero returns the zero Unit for a currency. Useful as an aggregation seed.
func Zero(currencyCode string, minimumFractionDigits int32) Unit {
	return Unit{amount: decimal.Zero, currencyCode: currencyCode, minDigits: minimumFractionDigits}
}

// Amount returns the full-precision decimal amount.
func (u Unit) Amount() decimal.Decimal {
	return u.amount
}

// CurrencyCode returns the currency code the amount is denominated in.
func (u Unit) CurrencyCode() string {
	return u.currencyCode
}

// MinimumFractionDigits returns the currency's display precision.
func (u Unit) MinimumFractionDigits() int32 {
	return u.minDigits
}

// FullPrecision renders the amount losslessly, suitable for persistence.
func (u Unit) FullPrecision() string {
	return u.amount.String()
}

// String renders the amount rounded to the currency's minimum fraction
// digits. Display only; the stored amount is untouched.
func (u Unit) String() string {
	return u.amount.StringFixed(u.minDigits)
}

// SameCurrency reports whether two Units share a currency code and precision.
func (u Unit) SameCurrency(other Unit) bool {
	return u.currencyCode == other.currencyCode && u.minDigits == other.minDigits
}

// Add returns the exact sum of two Units. Mixing currencies or precisions is
// a programming error and panics.
func (u Unit) Add(other Unit) Unit {
	u.mustMatch(other)
	return Unit{amount: u.amount.Add(other.amount), currencyCode: u.currencyCode, minDigits: u.minDigits}
}

// Sub returns the exact difference of two Units. Mixing currencies or
// precisions is a programming error and panics.
func (u Unit) Sub(other Unit) Unit {
	u.mustMatch(other)
	return Unit{amount: u.amount.Sub(other.amount), currencyCode: u.currencyCode, minDigits: u.minDigits}
}

// Neg returns the Unit with its amount negated.
func (u Unit) Neg() Unit {
	return Unit{amount: u.amount.Neg(), currencyCode: u.currencyCode, minDigits: u.minDigits}
}

// Equal reports exact equality of two Units in the same currency. Mixing
// currencies or precisions is a programming error and panics.
func (u Unit) Equal(other Unit) bool {
	u.mustMatch(other)
	return u.amount.Equal(other.amount)
}

// Cmp compares two Units in the same currency: -1 if u < other, 0 if equal,
// +1 if u > other. Mixing currencies or precisions panics.
func (u Unit) Cmp(other Unit) int {
	u.mustMatch(other)
	return u.amount.Cmp(other.amount)
}

// IsZero reports whether the amount is exactly zero.
func (u Unit) IsZero() bool {
	return u.amount.IsZero()
}

func (u Unit) mustMatch(other Unit) {
	if !u.SameCurrency(other) {
		panic(fmt.Sprintf("money: mismatched units %s/%d and %s/%d",
			u.currencyCode, u.minDigits, other.currencyCode, other.minDigits))
	}
}
