// internal/notify/kafka_sink.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"barternexus/internal/market"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	batchTimeout = 10 * time.Millisecond
	batchSize    = 100
)

// Producer is the subset of a Kafka writer the sink needs.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafkago.Message) error
	Close() error
}

// NewKafkaProducer builds a traced Kafka writer for topic. Messages are keyed
// by user id, so the hash balancer keeps each user's notifications ordered.
func NewKafkaProducer(broker, topic, clientID string, tp trace.TracerProvider) (Producer, error) {
	base := &kafkago.Writer{
		Addr:         kafkago.TCP(broker),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: batchTimeout,
		BatchSize:    batchSize,
	}

	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka writer: %w", err)
	}
	return writer, nil
}

// KafkaSink publishes notifications as JSON messages.
type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(producer Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Notify(ctx context.Context, n market.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(n.UserID.String()),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(n.Kind)},
		},
	}
	if err := s.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("publish %s notification: %w", n.Kind, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
