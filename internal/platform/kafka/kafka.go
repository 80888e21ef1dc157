// Package kafka forwards committed domain events to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/unitygrave/cardshop/modules/shared/events"
)

var ErrDisabled = errors.New("kafka disabled")

type Client struct {
	Brokers []string
}

func NewClient(brokers []string) *Client {
	clean := []string{}
	for _, b := range brokers {
		for _, part := range strings.Split(b, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				clean = append(clean, part)
			}
		}
	}
	return &Client{Brokers: clean}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Client) NewWriter(topic string) (*kafka.Writer, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}, nil
}

// MessageWriter is the part of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// envelope is the wire shape consumers such as the search indexer read.
type envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Aggregate  string          `json:"aggregate_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Forwarder is an event handler that publishes each event it receives,
// keyed by aggregate so one product's changes stay ordered in a partition.
type Forwarder struct {
	writer MessageWriter
}

func NewForwarder(writer MessageWriter) *Forwarder {
	return &Forwarder{writer: writer}
}

func (f *Forwarder) Handle(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event.EventType(), err)
	}
	data, err := json.Marshal(envelope{
		EventID:    event.EventID(),
		EventType:  event.EventType().String(),
		Aggregate:  event.AggregateID(),
		OccurredAt: event.OccurredAt(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID()),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType().String())},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s to kafka: %w", event.EventType(), err)
	}
	return nil
}

// Compile-time interface check.
var _ events.Handler = (*Forwarder)(nil)
