package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/equitypulse/portfolio-service/internal/models"
)

// PriceRepository defines the price store operation the consumer needs.
// Upserts are idempotent, so replayed ticks are harmless.
type PriceRepository interface {
	UpsertPrice(symbol string, price decimal.Decimal, observedAt time.Time) error
}

// Consumer ingests externally produced price ticks from Kafka into the
// price store. This is an alternative ingestion path beside the scheduled
// refresh job; both share the same upsert semantics.
type Consumer struct {
	reader *kafka.Reader
	repo   PriceRepository
	log    zerolog.Logger
}

// NewConsumer creates a new Kafka consumer for price tick events
func NewConsumer(brokers []string, topic, groupID string, repo PriceRepository, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
		log:    log.With().Str("component", "kafka_consumer").Logger(),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("starting kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // context cancelled, normal shutdown
				}
				c.log.Error().Err(err).Msg("error reading message")
				continue
			}

			if err := c.processMessage(msg); err != nil {
				c.log.Error().Err(err).Msg("error processing message")
				// continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(msg kafka.Message) error {
	var event models.PriceTickEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal price tick event: %w", err)
	}

	// only price ticks land in the store
	if event.EventType != models.EventTypePriceTick {
		c.log.Debug().Str("event_type", event.EventType).Msg("ignoring event type")
		return nil
	}

	symbol, price, observedAt, err := convertTick(event)
	if err != nil {
		return fmt.Errorf("invalid price tick: %w", err)
	}

	if err := c.repo.UpsertPrice(symbol, price, observedAt); err != nil {
		return fmt.Errorf("failed to save price tick: %w", err)
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("price", price.String()).
		Str("source", event.Source).
		Msg("saved price tick")

	return nil
}

// convertTick validates a PriceTickEvent and extracts store fields
func convertTick(event models.PriceTickEvent) (string, decimal.Decimal, time.Time, error) {
	if event.Symbol == "" {
		return "", decimal.Zero, time.Time{}, fmt.Errorf("missing symbol")
	}

	price, err := decimal.NewFromString(event.Price)
	if err != nil {
		return "", decimal.Zero, time.Time{}, fmt.Errorf("invalid price %s: %w", event.Price, err)
	}

	observedAt := time.Now()
	if event.Timestamp != nil && *event.Timestamp != "" {
		observedAt, err = time.Parse(time.RFC3339, *event.Timestamp)
		if err != nil {
			// try without timezone before falling back to now
			observedAt, err = time.Parse("2006-01-02T15:04:05", *event.Timestamp)
			if err != nil {
				observedAt = time.Now()
			}
		}
	}

	return event.Symbol, price, observedAt, nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
