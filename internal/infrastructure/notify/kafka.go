package notify

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	"github.com/minimart/checkout/internal/domain/order"
)

// KafkaDispatcher publishes order confirmations to a Kafka topic consumed by
// the downstream notification service. Messages are keyed by order id so
// confirmations for the same order land on one partition in order.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (d *KafkaDispatcher) Channel() string { return "kafka" }

func (d *KafkaDispatcher) SendOrderConfirmation(ctx context.Context, e order.OrderCommittedEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode confirmation: %w", err)
	}
	if err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
