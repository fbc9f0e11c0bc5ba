package property

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/money"
)

func TestBaseMoneyRequiresRate(t *testing.T) {
	p := &Property{ID: "chalet-1", Currency: "RON"}
	_, err := p.BaseMoney()
	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrConfiguration)

	var cfgErr *pricing.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "baseRate", cfgErr.Field)
}

func TestBaseMoneyRequiresCurrency(t *testing.T) {
	p := &Property{ID: "chalet-1", BaseRate: decimal.NewFromInt(100)}
	_, err := p.BaseMoney()
	assert.ErrorIs(t, err, pricing.ErrConfiguration)
}

func TestBaseMoney(t *testing.T) {
	p := &Property{ID: "chalet-1", BaseRate: decimal.NewFromInt(100), Currency: "ron"}
	m, err := p.BaseMoney()
	require.NoError(t, err)
	assert.Equal(t, "RON", m.Currency)
	assert.True(t, m.Amount.Equal(decimal.NewFromInt(100)))
}

func TestBaseMoneyExplainsInvalidCurrency(t *testing.T) {
	p := &Property{ID: "chalet-1", BaseRate: decimal.NewFromInt(100), Currency: "EURO"}
	_, err := p.BaseMoney()
	assert.ErrorIs(t, err, pricing.ErrConfiguration)
	assert.ErrorIs(t, err, money.ErrInvalidCurrency)
	assert.Equal(t, "pricing: property chalet-1: currency is invalid: "+money.ErrInvalidCurrency.Error(), err.Error())

	p.Currency = ""
	_, err = p.BaseMoney()
	assert.EqualError(t, err, "pricing: property chalet-1: currency is not configured")
}
