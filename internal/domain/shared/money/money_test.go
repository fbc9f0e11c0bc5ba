package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundByCurrency(t *testing.T) {
	v := decimal.RequireFromString("149.995")
	assert.Equal(t, "150", Round(v, "RON").String())
	assert.Equal(t, "150", Round(v, "EUR").String())
	assert.Equal(t, "12.35", Round(decimal.RequireFromString("12.345"), "usd").String())
	assert.Equal(t, "12", Round(decimal.RequireFromString("12.345"), "RON").String())
}

func TestNewValidatesCurrency(t *testing.T) {
	_, err := New(decimal.NewFromInt(1), "EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	m, err := New(decimal.RequireFromString("10.499"), "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", m.Currency)
	assert.Equal(t, "10.5", m.Amount.String())
}

func TestAddRejectsMismatch(t *testing.T) {
	a := Must(decimal.NewFromInt(100), "RON")
	b := Must(decimal.NewFromInt(50), "EUR")
	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := a.Add(Must(decimal.NewFromInt(50), "RON"))
	require.NoError(t, err)
	assert.True(t, sum.Amount.Equal(decimal.NewFromInt(150)))
}
