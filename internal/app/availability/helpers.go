package availability

import (
	"errors"
	"sort"

	domain "rentalspot/internal/domain/availability"
	"rentalspot/internal/domain/shared/daterange"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func sortDates(dates []string) {
	sort.Strings(dates)
}

func sortMonths(months []daterange.Month) {
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
}

func formatDays(month daterange.Month, days []int) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, daterange.FormatDay(month.Date(d)))
	}
	return out
}
