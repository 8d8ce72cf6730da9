package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-service/internal/correlation"
	"order-service/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// EventOrderConfirmationRequested is the event type published per placed order.
const EventOrderConfirmationRequested = "OrderConfirmationRequested"

// Envelope wraps every event published by the order service.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes confirmations for the notification service to
// consume, keyed by order id so events for one order stay ordered.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaNotifier creates a notifier writing to topic. Writes are
// synchronous; the dispatcher already keeps them off the request path.
func NewKafkaNotifier(brokers []string, topic string, logger zerolog.Logger) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, topic, logger)
}

func newKafkaNotifier(w messageWriter, topic string, logger zerolog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "kafka-notifier").Logger(),
	}
}

// SendOrderConfirmation publishes an OrderConfirmationRequested event.
func (n *KafkaNotifier) SendOrderConfirmation(ctx context.Context, confirmation model.OrderConfirmation) error {
	payload, err := json.Marshal(confirmation)
	if err != nil {
		return fmt.Errorf("failed to encode confirmation: %w", err)
	}

	corrID := correlation.FromContext(ctx)
	value, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderConfirmationRequested,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "order-service",
		CorrelationID: corrID,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(confirmation.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderConfirmationRequested)},
		},
	}
	if corrID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: correlation.Header, Value: []byte(corrID)})
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.logger.Error().
			Err(err).
			Str("topic", n.topic).
			Str("order_id", confirmation.OrderID).
			Msg("failed to publish order confirmation")
		return fmt.Errorf("failed to publish order confirmation: %w", err)
	}

	n.logger.Debug().
		Str("topic", n.topic).
		Str("order_id", confirmation.OrderID).
		Msg("order confirmation published")

	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
