package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"rentalspot/internal/domain/shared/daterange"
)

var (
	ErrInvalidMultiplier  = errors.New("pricing: price multiplier must be positive")
	ErrInvalidMinimumStay = errors.New("pricing: minimum stay must be at least one night")
	ErrInvalidRuleRange   = errors.New("pricing: rule end date precedes start date")
)

// Source tells which layer of the pricing rules produced a day's price.
type Source string

const (
	SourceBase     Source = "base"
	SourceSeason   Source = "season"
	SourceOverride Source = "override"
)

// SeasonalRule multiplies the base rate over an inclusive date range.
type SeasonalRule struct {
	ID              string          `json:"id"`
	PropertyID      string          `json:"propertyId"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	PriceMultiplier decimal.Decimal `json:"priceMultiplier"`
	MinimumStay     int             `json:"minimumStay"`
	Enabled         bool            `json:"enabled"`
}

// Covers reports whether date falls inside [StartDate, EndDate].
func (r SeasonalRule) Covers(date time.Time) bool {
	d := daterange.Day(date)
	start := daterange.Day(r.StartDate)
	end := daterange.Day(r.EndDate)
	return !d.Before(start) && !d.After(end)
}

func (r SeasonalRule) Validate() error {
	if !r.PriceMultiplier.IsPositive() {
		return ErrInvalidMultiplier
	}
	if r.MinimumStay < 1 {
		return ErrInvalidMinimumStay
	}
	if daterange.Day(r.EndDate).Before(daterange.Day(r.StartDate)) {
		return ErrInvalidRuleRange
	}
	return nil
}

// DateOverride is an admin exception for one day. Unset fields fall back to
// the base rate, availability and a one-night minimum.
type DateOverride struct {
	ID          string           `json:"id"`
	PropertyID  string           `json:"propertyId"`
	Date        time.Time        `json:"date"`
	CustomPrice *decimal.Decimal `json:"customPrice,omitempty"`
	Available   *bool            `json:"available,omitempty"`
	MinimumStay *int             `json:"minimumStay,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

func (o DateOverride) Matches(date time.Time) bool {
	return daterange.Day(o.Date).Equal(daterange.Day(date))
}

// BlocksDay reports whether the override explicitly closes its day.
func (o DateOverride) BlocksDay() bool {
	return o.Available != nil && !*o.Available
}
