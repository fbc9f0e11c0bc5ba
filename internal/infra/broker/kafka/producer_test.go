package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSendsKeyedMessageWithHeaders(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "calendar.events.v1" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "villa-1" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Key) != "ce_id" {
			return errors.New("headers not sorted")
		}
		return nil
	})
	p := NewProducerWith(sync)

	err := p.Publish(context.Background(), "calendar.events.v1", "villa-1", []byte(`{}`), map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_id":        "ev-1",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishReportsBrokerError(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p := NewProducerWith(sync)

	err := p.Publish(context.Background(), "calendar.events.v1", "villa-1", []byte(`{}`), nil)
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}

func TestPublishSkipsCancelledContext(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	p := NewProducerWith(sync)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, "calendar.events.v1", "villa-1", []byte(`{}`), nil), context.Canceled)
	require.NoError(t, p.Close())
}
