package daterange

import (
	"errors"
	"sort"
	"time"
)

var ErrInvalidMonth = errors.New("daterange: invalid month, expected YYYY-MM")

const monthLayout = "2006-01"

// Month identifies a calendar month as "YYYY-MM"; it is the storage key of
// every per-property calendar document.
type Month string

func MonthOf(t time.Time) Month {
	return Month(t.UTC().Format(monthLayout))
}

func ParseMonth(s string) (Month, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", ErrInvalidMonth
	}
	return Month(s), nil
}

// Start returns the first day of the month at midnight UTC.
func (m Month) Start() time.Time {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (m Month) Year() int {
	return m.Start().Year()
}

func (m Month) Number() int {
	return int(m.Start().Month())
}

// DaysIn returns the number of days in the month.
func (m Month) DaysIn() int {
	return m.Start().AddDate(0, 1, -1).Day()
}

// Date returns the given day of the month.
func (m Month) Date(day int) time.Time {
	return m.Start().AddDate(0, 0, day-1)
}

func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

func (m Month) String() string {
	return string(m)
}

// MonthDays groups the nights of a range by month, keeping day-of-month numbers.
// Months are returned in chronological order.
func (dr DateRange) MonthDays() ([]Month, map[Month][]int) {
	grouped := make(map[Month][]int)
	var order []Month
	for _, d := range dr.Days() {
		m := MonthOf(d)
		if _, ok := grouped[m]; !ok {
			order = append(order, m)
		}
		grouped[m] = append(grouped[m], d.Day())
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order, grouped
}
