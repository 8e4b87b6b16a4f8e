package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/equitypulse/portfolio-service/internal/models"
)

// Producer publishes price and job-run events to Kafka
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

// PublishPriceUpdated publishes a price updated event after the refresh
// job commits a snapshot
func (p *Producer) PublishPriceUpdated(ctx context.Context, snapshot *models.PriceSnapshot) error {
	event := models.PriceUpdatedEvent{
		EventType:  models.EventTypePriceUpdated,
		Symbol:     snapshot.Symbol,
		Price:      snapshot.Price.String(),
		ObservedAt: snapshot.ObservedAt,
	}
	return p.publish(ctx, snapshot.Symbol, event)
}

// PublishJobRun publishes a job run outcome event
func (p *Producer) PublishJobRun(ctx context.Context, jobID string, succeeded, failed int) error {
	event := models.JobRunEvent{
		EventType: runEventType(jobID),
		JobID:     jobID,
		Succeeded: succeeded,
		Failed:    failed,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, jobID, event)
}

func runEventType(jobID string) string {
	if jobID == "update_portfolio_history" {
		return models.EventTypeHistoryCompleted
	}
	return models.EventTypeRefreshCompleted
}

func (p *Producer) publish(ctx context.Context, key string, event interface{}) error {
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
