package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer messageWriter
	Topic  string
	Log    *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, topic, log)
}

func newProducer(w messageWriter, topic string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	return &Producer{Writer: w, Topic: topic, Log: log}
}

// PublishOrderStatus streams an order status change. Messages are keyed by
// order id so every change of one order lands on the same partition.
func (p *Producer) PublishOrderStatus(ctx context.Context, events ...models.OrderStatusEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.OrderID.String()), Value: b})
	}
	if err := p.Writer.WriteMessages(ctx, msgs...); err != nil {
		p.Log.LogKafka("PUBLISH_FAILED", p.Topic, err.Error())
		return fmt.Errorf("publish %d order events: %w", len(msgs), err)
	}
	p.Log.LogKafka("PUBLISHED", p.Topic, fmt.Sprintf("%d order status events", len(msgs)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// Discard drops events. It stands in when no broker is configured.
type Discard struct{}

func (Discard) PublishOrderStatus(context.Context, ...models.OrderStatusEvent) error { return nil }
