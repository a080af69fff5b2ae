package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tradesight/tradesight/internal/models"
)

// Producer handles publishing analysis events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishAnalysisCompleted publishes an event after a record is journaled.
// Events are keyed by user id so one user's analyses stay ordered.
func (p *Producer) PublishAnalysisCompleted(ctx context.Context, record *models.AnalysisRecord) error {
	event := models.AnalysisEvent{
		EventType: models.EventAnalysisCompleted,
		UserID:    record.UserID,
		Record:    record,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, record.UserID, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.AnalysisEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
