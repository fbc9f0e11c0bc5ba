package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/daterange"
)

type Stay struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Nights   int    `json:"nights"`
}

func MapStay(r daterange.DateRange) Stay {
	return Stay{
		CheckIn:  daterange.FormatDay(r.CheckIn),
		CheckOut: daterange.FormatDay(r.CheckOut),
		Nights:   r.Nights(),
	}
}

type NightPrice struct {
	Date               string          `json:"date"`
	Available          bool            `json:"available"`
	BaseOccupancyPrice decimal.Decimal `json:"baseOccupancyPrice"`
	PriceSource        string          `json:"priceSource"`
	MinimumStay        int             `json:"minimumStay"`
	RuleID             string          `json:"ruleId,omitempty"`
}

func mapNight(date string, p pricing.DayPrice) NightPrice {
	return NightPrice{
		Date:               date,
		Available:          p.Available,
		BaseOccupancyPrice: p.BaseOccupancyPrice,
		PriceSource:        string(p.PriceSource),
		MinimumStay:        p.MinimumStay,
		RuleID:             p.RuleID,
	}
}

type Quote struct {
	PropertyID       string       `json:"propertyId"`
	Stay             Stay         `json:"stay"`
	Available        bool         `json:"available"`
	UnavailableDates []string     `json:"unavailableDates"`
	Pricing          []NightPrice `json:"pricing"`
	MinimumStay      int          `json:"minimumStay"`
	MeetsMinimumStay bool         `json:"meetsMinimumStay"`
	Total            string       `json:"total"`
	Currency         string       `json:"currency,omitempty"`
	Degraded         bool         `json:"degraded,omitempty"`
}

func MapQuote(q availability.Quote) Quote {
	out := Quote{
		PropertyID:       q.PropertyID,
		Stay:             MapStay(q.Range),
		Available:        q.Available,
		UnavailableDates: nonNil(q.UnavailableDates),
		Pricing:          make([]NightPrice, 0, len(q.Pricing)),
		MinimumStay:      q.MinimumStay,
		MeetsMinimumStay: q.MeetsMinimumStay,
		Total:            q.Total.StringFixed(2),
		Currency:         q.Currency,
		Degraded:         q.Degraded,
	}
	for _, d := range q.Pricing {
		out.Pricing = append(out.Pricing, mapNight(d.Date, d.DayPrice))
	}
	return out
}

type Hold struct {
	BookingID  string    `json:"bookingId"`
	PropertyID string    `json:"propertyId"`
	Stay       Stay      `json:"stay"`
	HoldUntil  time.Time `json:"holdUntil"`
	Dates      []string  `json:"dates"`
}

func MapHold(r availability.HoldResult) Hold {
	return Hold{
		BookingID:  r.BookingID,
		PropertyID: r.PropertyID,
		Stay:       MapStay(r.Range),
		HoldUntil:  r.HoldUntil,
		Dates:      nonNil(r.Dates),
	}
}

// BookingChange reports the calendar effect of a confirm, cancel or release.
type BookingChange struct {
	BookingID  string   `json:"bookingId"`
	PropertyID string   `json:"propertyId"`
	Status     string   `json:"status"`
	Dates      []string `json:"dates"`
	Skipped    []string `json:"skipped,omitempty"`
}

func MapBookingChange(r availability.BookingResult) BookingChange {
	return BookingChange{
		BookingID:  r.BookingID,
		PropertyID: r.PropertyID,
		Status:     string(r.Status),
		Dates:      nonNil(r.Dates),
		Skipped:    r.Skipped,
	}
}

type BlockChange struct {
	PropertyID string   `json:"propertyId"`
	Source     string   `json:"source"`
	Blocked    bool     `json:"blocked"`
	Dates      []string `json:"dates"`
}

func MapBlockChange(r availability.BlockResult, blocked bool) BlockChange {
	return BlockChange{PropertyID: r.PropertyID, Source: r.Source, Blocked: blocked, Dates: nonNil(r.Dates)}
}

type CalendarDay struct {
	Date          string      `json:"date"`
	Available     bool        `json:"available"`
	Reason        string      `json:"reason,omitempty"`
	HeldBy        string      `json:"heldBy,omitempty"`
	ExternalBlock string      `json:"externalBlock,omitempty"`
	Price         *NightPrice `json:"price,omitempty"`
}

type MonthCalendar struct {
	PropertyID string        `json:"propertyId"`
	Month      string        `json:"month"`
	Currency   string        `json:"currency,omitempty"`
	Version    int64         `json:"version"`
	Days       []CalendarDay `json:"days"`
}

func MapMonthCalendar(v availability.MonthView) MonthCalendar {
	out := MonthCalendar{
		PropertyID: v.PropertyID,
		Month:      v.Month,
		Currency:   v.Currency,
		Version:    v.Version,
		Days:       make([]CalendarDay, 0, len(v.Days)),
	}
	for _, d := range v.Days {
		day := CalendarDay{
			Date:          d.Date,
			Available:     d.Available,
			Reason:        string(d.Reason),
			HeldBy:        d.HeldBy,
			ExternalBlock: d.ExternalBlock,
		}
		if d.Price != nil {
			night := mapNight(d.Date, *d.Price)
			day.Price = &night
		}
		out.Days = append(out.Days, day)
	}
	return out
}

type DayError struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

type GenerationReport struct {
	PropertyID  string     `json:"propertyId"`
	Months      []string   `json:"months"`
	DaysWritten int        `json:"daysWritten"`
	Repaired    []string   `json:"repaired,omitempty"`
	Errors      []DayError `json:"errors"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  time.Time  `json:"finishedAt"`
}

func MapGenerationReport(r availability.GenerationReport) GenerationReport {
	out := GenerationReport{
		PropertyID:  r.PropertyID,
		Months:      nonNil(r.Months),
		DaysWritten: r.DaysWritten,
		Repaired:    r.Repaired,
		Errors:      make([]DayError, 0, len(r.Errors)),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, DayError{Date: e.Date, Error: e.Error})
	}
	return out
}

func MapGenerationReports(reports []availability.GenerationReport) []GenerationReport {
	out := make([]GenerationReport, 0, len(reports))
	for _, r := range reports {
		out = append(out, MapGenerationReport(r))
	}
	return out
}

type Reconciliation struct {
	PropertyID    string   `json:"propertyId"`
	Months        []string `json:"months"`
	Repaired      []string `json:"repaired"`
	ReleasedHolds []string `json:"releasedHolds"`
}

func MapReconciliation(r availability.ReconcileReport) Reconciliation {
	return Reconciliation{
		PropertyID:    r.PropertyID,
		Months:        nonNil(r.Months),
		Repaired:      nonNil(r.Repaired),
		ReleasedHolds: nonNil(r.ReleasedHolds),
	}
}

func MapReconciliations(reports []availability.ReconcileReport) []Reconciliation {
	out := make([]Reconciliation, 0, len(reports))
	for _, r := range reports {
		out = append(out, MapReconciliation(r))
	}
	return out
}

type Sweep struct {
	Expired  int `json:"expired"`
	Released int `json:"released"`
	Skipped  int `json:"skipped"`
}

func MapSweep(r availability.SweepResult) Sweep {
	return Sweep{Expired: r.Expired, Released: r.Released, Skipped: r.Skipped}
}

type Health struct {
	AvailabilityStoreReachable bool `json:"availabilityStoreReachable"`
	StaleHeldCount             int  `json:"staleHeldCount"`
}

func MapHealth(h availability.Health) Health {
	return Health{AvailabilityStoreReachable: h.AvailabilityStoreReachable, StaleHeldCount: h.StaleHeldCount}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
