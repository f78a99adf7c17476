package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, event Event) error {
	fields := []zap.Field{zap.String("event", event.EventType())}

	switch e := event.(type) {
	case OrderCreated:
		fields = append(fields,
			zap.Int64("order_id", e.OrderID),
			zap.String("total", e.Total.StringFixed(2)),
			zap.Int("items", len(e.Items)),
			zap.String("recipient", e.RecipientEmail),
		)
	case OrderStatusChanged:
		fields = append(fields,
			zap.Int64("order_id", e.OrderID),
			zap.String("old_status", string(e.OldStatus)),
			zap.String("new_status", string(e.NewStatus)),
			zap.String("recipient", e.RecipientEmail),
		)
	default:
		fields = append(fields, zap.String("key", event.Key()))
	}

	s.logger.Info("order notification", fields...)
	return nil
}

// SNSPublisher is a minimal interface for publishing messages to SNS.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

type SNSSink struct {
	publisher SNSPublisher
	topicArn  string
	now       func() time.Time
}

func NewSNSSink(publisher SNSPublisher, topicArn string) *SNSSink {
	return &SNSSink{publisher: publisher, topicArn: topicArn, now: time.Now}
}

func (s *SNSSink) Send(ctx context.Context, event Event) error {
	body, err := Encode(event, s.now())
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.publisher.Publish(ctx, s.topicArn, body)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events keyed by order id so one order's events stay on a
// single partition.
type KafkaSink struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
}

func newKafkaSink(writer messageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, now: time.Now}
}

func (s *KafkaSink) Send(ctx context.Context, event Event) error {
	body, err := Encode(event, s.now())
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
