// Package core provides the domain model for the ledger: wallets,
// transactions, transfers and recurring rules, plus monetary arithmetic.
//
// All monetary amounts use decimal fixed-point arithmetic. Balances are
// mutated incrementally by the ledger; repeated float rounding would drift,
// so float64 never carries an amount anywhere in this codebase.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount. The currency is carried by the
// wallet the amount belongs to, not by the amount itself.
type Money struct {
	Value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{Value: decimal.Zero}

// NewMoney builds a Money from an integer units + cents pair, mostly useful
// in tests and seeds.
func NewMoney(units int64, cents int64) Money {
	v := decimal.NewFromInt(units).Add(decimal.New(cents, -2))
	return Money{Value: v}
}

// ParseMoney parses a positive decimal amount from user input.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimal places. Signs are rejected: direction is carried by
// the transaction type, never by the numeric sign.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	v = v.Round(2)
	if !v.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Value: v}, nil
}

// MoneyFromString parses a stored decimal string. Unlike ParseMoney it allows
// zero and negative values: wallet balances can legitimately be both.
func MoneyFromString(s string) (Money, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Value: v}, nil
}

func (m Money) Add(o Money) Money { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money        { return Money{Value: m.Value.Neg()} }

// Convert applies an exchange rate and rounds half-up to two decimal places.
func (m Money) Convert(rate decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(rate).Round(2)}
}

func (m Money) IsZero() bool          { return m.Value.IsZero() }
func (m Money) IsPositive() bool      { return m.Value.IsPositive() }
func (m Money) IsNegative() bool      { return m.Value.IsNegative() }
func (m Money) Equal(o Money) bool    { return m.Value.Equal(o.Value) }
func (m Money) LessThan(o Money) bool { return m.Value.LessThan(o.Value) }

// String renders the amount with exactly two decimal places; this is also the
// storage format.
func (m Money) String() string {
	return m.Value.StringFixed(2)
}
