package pricing

import (
	"strconv"
	"time"

	"rentalspot/internal/domain/shared/daterange"
)

// MonthCalendar is the materialized price projection of one property-month.
// Days are keyed by day-of-month rendered as a string ("1".."31").
type MonthCalendar struct {
	PropertyID  string              `json:"propertyId"`
	Year        int                 `json:"year"`
	Month       int                 `json:"month"`
	Currency    string              `json:"currency,omitempty"`
	Days        map[string]DayPrice `json:"days"`
	GeneratedAt time.Time           `json:"generatedAt,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// NewMonthCalendar returns an empty, not yet generated calendar.
func NewMonthCalendar(propertyID string, month daterange.Month, now time.Time) *MonthCalendar {
	return &MonthCalendar{
		PropertyID: propertyID,
		Year:       month.Year(),
		Month:      month.Number(),
		Days:       map[string]DayPrice{},
		UpdatedAt:  now.UTC(),
	}
}

func DayKey(day int) string {
	return strconv.Itoa(day)
}

// Key returns the storage month of the calendar.
func (c *MonthCalendar) Key() daterange.Month {
	return daterange.MonthOf(time.Date(c.Year, time.Month(c.Month), 1, 0, 0, 0, 0, time.UTC))
}

func (c *MonthCalendar) Day(day int) (DayPrice, bool) {
	if c == nil {
		return DayPrice{}, false
	}
	d, ok := c.Days[DayKey(day)]
	return d, ok
}

// SetAvailable mirrors ledger availability into the day, creating an unpriced
// entry when the day has not been generated yet.
func (c *MonthCalendar) SetAvailable(day int, available bool) {
	if c.Days == nil {
		c.Days = map[string]DayPrice{}
	}
	d := c.Days[DayKey(day)]
	d.Available = available
	c.Days[DayKey(day)] = d
}

// Priced reports whether the generator has produced a price for the day.
func (d DayPrice) Priced() bool {
	return d.BaseOccupancyPrice.IsPositive()
}

func (c *MonthCalendar) Clone() *MonthCalendar {
	if c == nil {
		return nil
	}
	out := *c
	out.Days = make(map[string]DayPrice, len(c.Days))
	for k, v := range c.Days {
		out.Days[k] = v
	}
	return &out
}
