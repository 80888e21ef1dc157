package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitygrave/cardshop/internal/platform/kafka"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
)

type mockWriter struct {
	writeFn func(ctx context.Context, msgs ...segkafka.Message) error
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...segkafka.Message) error {
	return m.writeFn(ctx, msgs...)
}

func TestNewClient(t *testing.T) {
	c := kafka.NewClient([]string{" kafka-1:9092, kafka-2:9092", ""})
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())

	_, err := kafka.NewClient(nil).NewWriter("topic")
	assert.ErrorIs(t, err, kafka.ErrDisabled)
}

func TestForwarder_Handle(t *testing.T) {
	var sent []segkafka.Message
	f := kafka.NewForwarder(&mockWriter{writeFn: func(ctx context.Context, msgs ...segkafka.Message) error {
		sent = append(sent, msgs...)
		return nil
	}})

	event := contracts.StockChangedEvent{
		BaseEvent:   events.NewBaseEvent(contracts.StockChangedEventType, "product-1"),
		ProductID:   "product-1",
		OldQuantity: 3,
		NewQuantity: 1,
		Delta:       -2,
		Reason:      "order_placed",
	}
	require.NoError(t, f.Handle(context.Background(), event))

	require.Len(t, sent, 1)
	assert.Equal(t, "product-1", string(sent[0].Key))

	var body struct {
		EventType string `json:"event_type"`
		Payload   struct {
			NewQuantity int `json:"new_quantity"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(sent[0].Value, &body))
	assert.Equal(t, "inventory.StockChanged", body.EventType)
	assert.Equal(t, 1, body.Payload.NewQuantity)
}

func TestForwarder_WriteError(t *testing.T) {
	errBroker := errors.New("broker unavailable")
	f := kafka.NewForwarder(&mockWriter{writeFn: func(ctx context.Context, msgs ...segkafka.Message) error {
		return errBroker
	}})

	err := f.Handle(context.Background(), contracts.LowStockEvent{
		BaseEvent: events.NewBaseEvent(contracts.LowStockEventType, "product-1"),
	})
	assert.ErrorIs(t, err, errBroker)
}
