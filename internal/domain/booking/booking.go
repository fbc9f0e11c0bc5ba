package booking

import (
	"context"
	"errors"
	"time"

	"rentalspot/internal/domain/shared/daterange"
)

var (
	ErrBookingNotFound  = errors.New("booking: not found")
	ErrInvalidState     = errors.New("booking: invalid state transition")
	ErrStatusChanged    = errors.New("booking: status changed concurrently")
	ErrConcurrentUpdate = errors.New("booking: concurrent update detected")
)

type BookingID string

// Status is the lifecycle state the calendar engine cares about.
type Status string

const (
	StatusOnHold    Status = "on-hold"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// ChannelDirect marks bookings taken through the site itself.
const ChannelDirect = "direct"

// Booking is the slice of the booking record shared with the calendar engine.
// The record itself is owned by the checkout flow.
type Booking struct {
	ID         BookingID
	PropertyID string
	Range      daterange.DateRange
	Status     Status
	HoldUntil  time.Time
	Channel    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int64
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// Save persists the booking, failing with ErrConcurrentUpdate when the
	// stored version moved since the booking was read.
	Save(ctx context.Context, booking *Booking) error
	// Transition moves a booking from one status to another only if it is
	// still in the expected status; otherwise it returns ErrStatusChanged.
	Transition(ctx context.Context, id BookingID, from, to Status, now time.Time) (*Booking, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
	CountExpiredHolds(ctx context.Context, now time.Time) (int, error)
	// ListActiveOverlapping returns on-hold and confirmed bookings of the
	// property overlapping the range, excluding the given booking.
	ListActiveOverlapping(ctx context.Context, propertyID string, r daterange.DateRange, exclude BookingID) ([]*Booking, error)
}

// NewHold creates the on-hold record for a checkout that just started.
func NewHold(id BookingID, propertyID string, r daterange.DateRange, ttl time.Duration, now time.Time) *Booking {
	now = now.UTC()
	return &Booking{
		ID:         id,
		PropertyID: propertyID,
		Range:      r,
		Status:     StatusOnHold,
		HoldUntil:  now.Add(ttl),
		Channel:    ChannelDirect,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Internal reports whether the booking was taken on the site rather than an
// external channel.
func (b *Booking) Internal() bool {
	return b.Channel == "" || b.Channel == ChannelDirect
}

// Active bookings occupy their dates.
func (b *Booking) Active() bool {
	return b.Status == StatusOnHold || b.Status == StatusConfirmed
}

func (b *Booking) HoldExpired(now time.Time) bool {
	return b.Status == StatusOnHold && !b.HoldUntil.After(now)
}

// CanTransition encodes the allowed status moves.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusOnHold:
		return to == StatusConfirmed || to == StatusCancelled || to == StatusExpired
	case StatusConfirmed:
		return to == StatusCancelled
	default:
		return false
	}
}

// Apply performs a status transition in memory.
func (b *Booking) Apply(to Status, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return ErrInvalidState
	}
	b.Status = to
	b.UpdatedAt = now.UTC()
	return nil
}
