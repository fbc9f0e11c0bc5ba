package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/handlers/calendar"
	domain "rentalspot/internal/domain/availability"
	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/shared/daterange"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventBookingCancelled = "booking.cancelled"
)

// Inbox remembers which events were already applied.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type paymentEnvelope struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data paymentData `json:"data"`
}

type paymentData struct {
	BookingID  string `json:"bookingId"`
	PropertyID string `json:"propertyId"`
	CheckIn    string `json:"checkIn"`
	CheckOut   string `json:"checkOut"`
	Channel    string `json:"channel"`
}

// PaymentHandler turns checkout outcomes into calendar commands: a successful
// payment confirms the booking, a failed one gives up its hold and a
// cancellation frees its nights.
type PaymentHandler struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

func (h *PaymentHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env paymentEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger().WarnContext(ctx, "dropping undecodable payment event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if env.Type == "" {
		env.Type = header(msg, "ce_type")
	}
	if env.ID == "" {
		env.ID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	err := h.apply(ctx, env)
	if err == nil || permanent(err) {
		if err != nil {
			h.logger().WarnContext(ctx, "payment event rejected", "event_id", env.ID, "type", env.Type, "booking_id", env.Data.BookingID, "error", err)
		}
		return nil
	}
	if h.Inbox != nil {
		if fErr := h.Inbox.Forget(ctx, env.ID); fErr != nil {
			return errors.Join(err, fErr)
		}
	}
	return err
}

func (h *PaymentHandler) apply(ctx context.Context, env paymentEnvelope) error {
	switch env.Type {
	case EventPaymentSucceeded, EventPaymentSucceeded + ".v1":
		r, err := daterange.Parse(env.Data.CheckIn, env.Data.CheckOut)
		if err != nil {
			return err
		}
		_, err = commands.Dispatch[calendar.ConfirmBookingCommand, *dto.BookingChange](ctx, h.Bus, calendar.ConfirmBookingCommand{
			BookingID:       env.Data.BookingID,
			PropertyID:      env.Data.PropertyID,
			CheckIn:         r.CheckIn,
			CheckOut:        r.CheckOut,
			Channel:         env.Data.Channel,
			IdempotencyKeyV: "event:" + env.ID,
		})
		return err
	case EventPaymentFailed, EventPaymentFailed + ".v1":
		_, err := commands.Dispatch[calendar.ReleaseHoldCommand, *dto.BookingChange](ctx, h.Bus, calendar.ReleaseHoldCommand{BookingID: env.Data.BookingID})
		return err
	case EventBookingCancelled, EventBookingCancelled + ".v1":
		_, err := commands.Dispatch[calendar.CancelBookingCommand, *dto.BookingChange](ctx, h.Bus, calendar.CancelBookingCommand{
			BookingID:       env.Data.BookingID,
			IdempotencyKeyV: "event:" + env.ID,
		})
		return err
	default:
		h.logger().DebugContext(ctx, "ignoring event", "event_id", env.ID, "type", env.Type)
		return nil
	}
}

// permanent errors will fail the same way on redelivery.
func permanent(err error) bool {
	var pe *domain.PartialConsistencyError
	if errors.As(err, &pe) {
		return false
	}
	return errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, availability.ErrInvalidRequest) ||
		errors.Is(err, domainbooking.ErrBookingNotFound) ||
		errors.Is(err, domainbooking.ErrInvalidState) ||
		errors.Is(err, domainbooking.ErrCheckInInPast) ||
		errors.Is(err, daterange.ErrInvalidRange) ||
		errors.Is(err, daterange.ErrInvalidDay)
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (h *PaymentHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ MessageHandler = (*PaymentHandler)(nil)
