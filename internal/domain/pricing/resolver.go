package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"rentalspot/internal/domain/shared/daterange"
	"rentalspot/internal/domain/shared/money"
)

// DayPrice is one day of the price calendar.
type DayPrice struct {
	Available          bool            `json:"available"`
	BaseOccupancyPrice decimal.Decimal `json:"baseOccupancyPrice"`
	PriceSource        Source          `json:"priceSource"`
	MinimumStay        int             `json:"minimumStay"`
	// RuleID names the override or seasonal rule that decided the price.
	RuleID string `json:"ruleId,omitempty"`
}

// Resolve computes the effective price of a single date. Priority: a date
// override, then the enabled season with the latest start date, then the base
// rate. The function is pure; rules and overrides for other properties are
// ignored.
func Resolve(propertyID string, date time.Time, baseRate money.Money, rules []SeasonalRule, overrides []DateOverride) (DayPrice, error) {
	date = daterange.Day(date)

	if o, ok := pickOverride(propertyID, date, overrides); ok {
		price := baseRate.Amount
		if o.CustomPrice != nil {
			price = *o.CustomPrice
		}
		day := DayPrice{
			Available:          true,
			BaseOccupancyPrice: money.Round(price, baseRate.Currency),
			PriceSource:        SourceOverride,
			MinimumStay:        1,
			RuleID:             o.ID,
		}
		if o.Available != nil {
			day.Available = *o.Available
		}
		if o.MinimumStay != nil && *o.MinimumStay > 1 {
			day.MinimumStay = *o.MinimumStay
		}
		return checkPositive(propertyID, date, day)
	}

	if r, ok := pickSeason(propertyID, date, rules); ok {
		day := DayPrice{
			Available:          true,
			BaseOccupancyPrice: baseRate.Mul(r.PriceMultiplier).Amount,
			PriceSource:        SourceSeason,
			MinimumStay:        max(r.MinimumStay, 1),
			RuleID:             r.ID,
		}
		return checkPositive(propertyID, date, day)
	}

	day := DayPrice{
		Available:          true,
		BaseOccupancyPrice: money.Round(baseRate.Amount, baseRate.Currency),
		PriceSource:        SourceBase,
		MinimumStay:        1,
	}
	return checkPositive(propertyID, date, day)
}

// pickOverride returns the override for date; several overrides on one day
// resolve to the greatest id.
func pickOverride(propertyID string, date time.Time, overrides []DateOverride) (DateOverride, bool) {
	var (
		best  DateOverride
		found bool
	)
	for _, o := range overrides {
		if o.PropertyID != "" && o.PropertyID != propertyID {
			continue
		}
		if !o.Matches(date) {
			continue
		}
		if !found || o.ID > best.ID {
			best, found = o, true
		}
	}
	return best, found
}

// pickSeason applies the overlap tie-break: latest start date wins, equal
// start dates resolve to the greatest id.
func pickSeason(propertyID string, date time.Time, rules []SeasonalRule) (SeasonalRule, bool) {
	var (
		best  SeasonalRule
		found bool
	)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if r.PropertyID != "" && r.PropertyID != propertyID {
			continue
		}
		if !r.Covers(date) {
			continue
		}
		if !found {
			best, found = r, true
			continue
		}
		start, bestStart := daterange.Day(r.StartDate), daterange.Day(best.StartDate)
		if start.After(bestStart) || (start.Equal(bestStart) && r.ID > best.ID) {
			best = r
		}
	}
	return best, found
}

func checkPositive(propertyID string, date time.Time, day DayPrice) (DayPrice, error) {
	if !day.BaseOccupancyPrice.IsPositive() {
		return DayPrice{}, &PricingError{PropertyID: propertyID, Date: date, Reason: "price must be positive, got " + day.BaseOccupancyPrice.String()}
	}
	return day, nil
}
