package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentalspot/internal/domain/shared/events"
)

const contentTypeJSON = "application/json"

var ErrUnnamedEvent = errors.New("outbox: event has no name")

// EventRecord is one calendar event waiting for the outbox worker.
// Aggregate is the property id and becomes the Kafka message key, so every
// event of a property lands on the same partition in order.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox stores event records until a worker publishes them.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder marshals events as JSON under time-ordered ids.
type JSONEventEncoder struct {
	IDGenerator func() string
	Now         func() time.Time
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	if ev.EventName() == "" {
		return EventRecord{}, ErrUnnamedEvent
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}
	at := ev.OccurredAt()
	if at.IsZero() {
		now := e.Now
		if now == nil {
			now = time.Now
		}
		at = now()
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: at.UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{"content_type": contentTypeJSON},
	}, nil
}

// RecordDomainEvents encodes every event before adding any, so one bad
// payload leaves the outbox untouched.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	records := make([]EventRecord, 0, len(evs))
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		rec, err := encoder.Encode(ev)
		if err != nil {
			return fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		if err := box.Add(ctx, rec); err != nil {
			return fmt.Errorf("outbox: add %s %s: %w", rec.Name, rec.ID, err)
		}
	}
	return nil
}

func defaultIDGenerator() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
