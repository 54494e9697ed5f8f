package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 code supported by the ledger.
type Currency string

const (
	NGN Currency = "NGN"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	GHS Currency = "GHS"
	KES Currency = "KES"
	XOF Currency = "XOF"
	XAF Currency = "XAF"
)

// minorUnitExponents maps each supported currency to its number of minor-unit digits.
var minorUnitExponents = map[Currency]int32{
	NGN: 2,
	USD: 2,
	EUR: 2,
	GBP: 2,
	GHS: 2,
	KES: 2,
	XOF: 0,
	XAF: 0,
}

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ParseCurrency normalises and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := minorUnitExponents[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

// Exponent returns the number of minor-unit digits, e.g. 2 for kobo.
func (c Currency) Exponent() int32 {
	return minorUnitExponents[c]
}

// Valid reports whether the currency is supported.
func (c Currency) Valid() bool {
	_, ok := minorUnitExponents[c]
	return ok
}

// Money is an integer amount of minor units in a single currency.
type Money struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

// NewMoney builds a Money value from minor units.
func NewMoney(minor int64, c Currency) Money {
	return Money{Amount: minor, Currency: c}
}

// MoneyFromMajor converts a major-unit decimal (e.g. 500.25 NGN) to minor
// units. Values more precise than the currency allows are rejected.
func MoneyFromMajor(major decimal.Decimal, c Currency) (Money, error) {
	if !c.Valid() {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, c)
	}
	minor := major.Shift(c.Exponent())
	if !minor.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s has more than %d decimal places for %s", ErrInvalidAmount, major, c.Exponent(), c)
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, major)
	}
	return Money{Amount: minor.IntPart(), Currency: c}, nil
}

// ParseMajor parses a major-unit decimal string such as "1500.50".
func ParseMajor(s string, c Currency) (Money, error) {
	major, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromMajor(major, c)
}

// ToMajor returns the amount in major units.
func (m Money) ToMajor() decimal.Decimal {
	return decimal.New(m.Amount, -m.Currency.Exponent())
}

func (m Money) String() string {
	return m.ToMajor().StringFixed(m.Currency.Exponent()) + " " + string(m.Currency)
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

// Neg returns the opposite-signed amount.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Add sums two amounts of the same currency.
func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

// Sub subtracts o from m.
func (m Money) Sub(o Money) (Money, error) {
	return m.Add(o.Neg())
}

// MulFloor returns floor(amount * rate) in minor units.
func (m Money) MulFloor(rate decimal.Decimal) Money {
	v := decimal.NewFromInt(m.Amount).Mul(rate).Floor()
	return Money{Amount: v.IntPart(), Currency: m.Currency}
}
