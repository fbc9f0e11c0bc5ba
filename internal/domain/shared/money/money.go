package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// zeroDecimal lists currencies priced in whole units. RON is quoted without
// bani in this market, so it is treated the same way.
var zeroDecimal = map[string]struct{}{
	"RON": {},
	"JPY": {},
	"KRW": {},
	"HUF": {},
	"ISK": {},
	"CLP": {},
	"VND": {},
}

// Money pairs a decimal amount with an ISO currency code.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// New constructs Money rounded to the currency's minor unit.
func New(amount decimal.Decimal, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: Round(amount, currency), Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount decimal.Decimal, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// MinorUnits returns the number of decimals used when quoting the currency.
func MinorUnits(currency string) int32 {
	if _, ok := zeroDecimal[strings.ToUpper(currency)]; ok {
		return 0
	}
	return 2
}

// Round rounds half away from zero to the currency's minor unit.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Mul scales the amount and re-rounds it to the minor unit.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: Round(m.Amount.Mul(factor), m.Currency), Currency: m.Currency}
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// Float returns the amount as float64 for JSON surfaces.
func (m Money) Float() float64 {
	f, _ := m.Amount.Float64()
	return f
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
