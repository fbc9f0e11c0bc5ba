package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentalspot/internal/app/outbox"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	fail error
	out  []published
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func addEvent(t *testing.T, store *MemoryStore, id, name string) {
	t.Helper()
	require.NoError(t, store.Add(context.Background(), appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"propertyId":"villa-1","bookingId":"b-1"}`),
		OccurredAt: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		Aggregate:  "villa-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}))
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	store := NewMemoryStore()
	addEvent(t, store, "ev-1", "calendar.held")
	addEvent(t, store, "ev-1", "calendar.held")
	producer := &fakeProducer{}
	w := &Worker{Store: store, Producer: producer, ID: "w-1", TopicPrefix: "prod."}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, producer.out, 1)

	msg := producer.out[0]
	assert.Equal(t, "prod.calendar.events.v1", msg.topic)
	assert.Equal(t, "villa-1", msg.key)
	assert.Equal(t, "application/cloudevents+json", msg.headers["content-type"])

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &envelope))
	assert.Equal(t, "1.0", envelope["specversion"])
	assert.Equal(t, "ev-1", envelope["id"])
	assert.Equal(t, "calendar.held.v1", envelope["type"])
	assert.Equal(t, "app://rentalspot", envelope["source"])
	assert.Equal(t, "00-abc-def-01", envelope["traceparent"])
	assert.Equal(t, "b-1", envelope["data"].(map[string]any)["bookingId"])
	assert.Zero(t, store.Pending())
}

func TestDrainReschedulesFailedPublish(t *testing.T) {
	store := NewMemoryStore()
	addEvent(t, store, "ev-1", "calendar.released")
	producer := &fakeProducer{fail: errors.New("broker down")}
	w := &Worker{Store: store, Producer: producer, ID: "w-1", Backoff: []time.Duration{time.Hour}}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1, store.Pending())

	producer.fail = nil
	sent, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent, "message is parked until its retry time")
}

func TestDrainRejectsUndecodablePayload(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Add(context.Background(), appoutbox.EventRecord{ID: "bad", Name: "calendar.held", Payload: []byte("{")}))
	producer := &fakeProducer{}
	w := &Worker{Store: store, Producer: producer, ID: "w-1"}

	_, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, producer.out)
	assert.Equal(t, 1, store.Pending())
}

func TestRunRequiresDependencies(t *testing.T) {
	w := &Worker{}
	assert.ErrorIs(t, w.Run(context.Background()), ErrWorkerNotConfigured)
}

type chanProducer chan string

func (p chanProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p <- topic
	return nil
}

func TestFlushWakesRunningWorker(t *testing.T) {
	store := NewMemoryStore()
	producer := make(chanProducer, 1)
	w := &Worker{Store: store, Producer: producer, ID: "w-1", Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	addEvent(t, store, "ev-1", "calendar.confirmed")
	require.NoError(t, store.Flush(ctx))

	select {
	case topic := <-producer:
		assert.Equal(t, "calendar.events.v1", topic)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not publish after flush")
	}
	cancel()
	require.NoError(t, <-done)
}
