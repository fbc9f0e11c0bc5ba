package property

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/money"
)

var ErrPropertyNotFound = errors.New("property: not found")

// Property is the pricing configuration owned by the property admin.
type Property struct {
	ID        string
	Name      string
	BaseRate  decimal.Decimal
	Currency  string
	Rules     []pricing.SeasonalRule
	Overrides []pricing.DateOverride
}

// Catalog supplies property configuration to the calendar engine.
type Catalog interface {
	Property(ctx context.Context, id string) (*Property, error)
	List(ctx context.Context) ([]*Property, error)
}

// BaseMoney returns the base nightly rate, or a ConfigurationError when the
// property cannot be priced at all.
func (p *Property) BaseMoney() (money.Money, error) {
	if !p.BaseRate.IsPositive() {
		return money.Money{}, &pricing.ConfigurationError{PropertyID: p.ID, Field: "baseRate"}
	}
	if p.Currency == "" {
		return money.Money{}, &pricing.ConfigurationError{PropertyID: p.ID, Field: "currency"}
	}
	m, err := money.New(p.BaseRate, p.Currency)
	if err != nil {
		return money.Money{}, &pricing.ConfigurationError{PropertyID: p.ID, Field: "currency", Err: err}
	}
	return m, nil
}
