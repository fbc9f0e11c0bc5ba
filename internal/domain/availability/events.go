package availability

import (
	"time"

	"rentalspot/internal/domain/shared/daterange"
)

type DatesHeld struct {
	PropertyID string              `json:"propertyId"`
	BookingID  string              `json:"bookingId"`
	Range      daterange.DateRange `json:"range"`
	HoldUntil  time.Time           `json:"holdUntil"`
	At         time.Time           `json:"at"`
}

func (e DatesHeld) EventName() string     { return "calendar.held" }
func (e DatesHeld) AggregateID() string   { return e.PropertyID }
func (e DatesHeld) OccurredAt() time.Time { return e.At }

type DatesReleased struct {
	PropertyID string    `json:"propertyId"`
	BookingID  string    `json:"bookingId"`
	Dates      []string  `json:"dates"`
	Cause      string    `json:"cause"`
	At         time.Time `json:"at"`
}

func (e DatesReleased) EventName() string     { return "calendar.released" }
func (e DatesReleased) AggregateID() string   { return e.PropertyID }
func (e DatesReleased) OccurredAt() time.Time { return e.At }

type DatesBooked struct {
	PropertyID string              `json:"propertyId"`
	BookingID  string              `json:"bookingId"`
	Range      daterange.DateRange `json:"range"`
	At         time.Time           `json:"at"`
}

func (e DatesBooked) EventName() string     { return "calendar.booked" }
func (e DatesBooked) AggregateID() string   { return e.PropertyID }
func (e DatesBooked) OccurredAt() time.Time { return e.At }

type HoldExpired struct {
	PropertyID string    `json:"propertyId"`
	BookingID  string    `json:"bookingId"`
	HoldUntil  time.Time `json:"holdUntil"`
	At         time.Time `json:"at"`
}

func (e HoldExpired) EventName() string     { return "calendar.hold_expired" }
func (e HoldExpired) AggregateID() string   { return e.PropertyID }
func (e HoldExpired) OccurredAt() time.Time { return e.At }

type ExternalBlockChanged struct {
	PropertyID string    `json:"propertyId"`
	Source     string    `json:"source"`
	Dates      []string  `json:"dates"`
	Blocked    bool      `json:"blocked"`
	At         time.Time `json:"at"`
}

func (e ExternalBlockChanged) EventName() string     { return "calendar.external_block" }
func (e ExternalBlockChanged) AggregateID() string   { return e.PropertyID }
func (e ExternalBlockChanged) OccurredAt() time.Time { return e.At }

type CalendarGenerated struct {
	PropertyID string    `json:"propertyId"`
	Months     []string  `json:"months"`
	Days       int       `json:"days"`
	Errors     int       `json:"errors"`
	At         time.Time `json:"at"`
}

func (e CalendarGenerated) EventName() string     { return "calendar.generated" }
func (e CalendarGenerated) AggregateID() string   { return e.PropertyID }
func (e CalendarGenerated) OccurredAt() time.Time { return e.At }

type DriftDetected struct {
	PropertyID string    `json:"propertyId"`
	Dates      []string  `json:"dates"`
	Repaired   bool      `json:"repaired"`
	At         time.Time `json:"at"`
}

func (e DriftDetected) EventName() string     { return "calendar.drift_detected" }
func (e DriftDetected) AggregateID() string   { return e.PropertyID }
func (e DriftDetected) OccurredAt() time.Time { return e.At }
