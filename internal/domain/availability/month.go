package availability

import (
	"time"

	"rentalspot/internal/domain/shared/daterange"
)

// Reason explains why a day is not bookable.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonHold     Reason = "hold"
	ReasonExternal Reason = "external"
	ReasonBooked   Reason = "booked"
)

// MonthAvailability is the ledger document of one property-month. A day
// absent from Available is treated as available; documents created by the
// engine always carry every day.
type MonthAvailability struct {
	PropertyID     string
	Month          daterange.Month
	Available      map[int]bool
	Holds          map[int]string
	ExternalBlocks map[int]string
	Version        int64
	UpdatedAt      time.Time
}

// NewMonthAvailability builds a fully available month.
func NewMonthAvailability(propertyID string, month daterange.Month, now time.Time) *MonthAvailability {
	doc := &MonthAvailability{
		PropertyID:     propertyID,
		Month:          month,
		Available:      make(map[int]bool, month.DaysIn()),
		Holds:          map[int]string{},
		ExternalBlocks: map[int]string{},
		UpdatedAt:      now.UTC(),
	}
	for d := 1; d <= month.DaysIn(); d++ {
		doc.Available[d] = true
	}
	return doc
}

func (m *MonthAvailability) IsAvailable(day int) bool {
	v, ok := m.Available[day]
	return !ok || v
}

func (m *MonthAvailability) HeldBy(day int) string {
	return m.Holds[day]
}

func (m *MonthAvailability) ExternalBlock(day int) string {
	return m.ExternalBlocks[day]
}

// ReasonFor returns why a day is unavailable. Days closed without any
// annotation belong to a confirmed booking.
func (m *MonthAvailability) ReasonFor(day int) Reason {
	if m.IsAvailable(day) {
		return ReasonNone
	}
	if m.Holds[day] != "" {
		return ReasonHold
	}
	if m.ExternalBlocks[day] != "" {
		return ReasonExternal
	}
	return ReasonBooked
}

// Apply writes one day patch into the document.
func (m *MonthAvailability) Apply(p DayPatch) {
	if m.Available == nil {
		m.Available = map[int]bool{}
	}
	if m.Holds == nil {
		m.Holds = map[int]string{}
	}
	if m.ExternalBlocks == nil {
		m.ExternalBlocks = map[int]string{}
	}
	m.Available[p.Day] = p.Available
	if p.ClearHold {
		delete(m.Holds, p.Day)
	}
	if p.Hold != "" {
		m.Holds[p.Day] = p.Hold
	}
	if p.ClearExternalBlock {
		delete(m.ExternalBlocks, p.Day)
	}
	if p.ExternalBlock != "" {
		m.ExternalBlocks[p.Day] = p.ExternalBlock
	}
}

// StaleAnnotations lists days that are available yet still carry a hold or
// external block. A healthy document returns none.
func (m *MonthAvailability) StaleAnnotations() []int {
	var out []int
	for d := 1; d <= m.Month.DaysIn(); d++ {
		if m.IsAvailable(d) && (m.Holds[d] != "" || m.ExternalBlocks[d] != "") {
			out = append(out, d)
		}
	}
	return out
}

func (m *MonthAvailability) Clone() *MonthAvailability {
	if m == nil {
		return nil
	}
	out := *m
	out.Available = make(map[int]bool, len(m.Available))
	for k, v := range m.Available {
		out.Available[k] = v
	}
	out.Holds = make(map[int]string, len(m.Holds))
	for k, v := range m.Holds {
		out.Holds[k] = v
	}
	out.ExternalBlocks = make(map[int]string, len(m.ExternalBlocks))
	for k, v := range m.ExternalBlocks {
		out.ExternalBlocks[k] = v
	}
	return &out
}

// DayStatus is the ledger view of a single day.
type DayStatus struct {
	Date              time.Time `json:"date"`
	Available         bool      `json:"available"`
	HeldBy            string    `json:"heldBy,omitempty"`
	ExternallyBlocked string    `json:"externallyBlocked,omitempty"`
}
