package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// StatementEvent is the audit record emitted after a successful mutation.
type StatementEvent struct {
	EventID      string    `json:"event_id"`
	Operation    string    `json:"operation"`
	Query        string    `json:"query"`
	ParamTypes   string    `json:"param_types,omitempty"`
	LastInsertID *int64    `json:"last_insert_id,omitempty"`
	RowsAffected int64     `json:"rows_affected"`
	RequestID    string    `json:"request_id,omitempty"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// Publisher writes statement audit events to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewPublisher builds a publisher for topic on brokers. Connections are
// made lazily on the first Publish.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With(zap.String("component", "audit_publisher"), zap.String("topic", topic)),
	}
}

// Publish writes event keyed by its event ID.
func (p *Publisher) Publish(ctx context.Context, event StatementEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal statement event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EventID),
		Value: value,
		Time:  event.ExecutedAt,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write statement event: %w", err)
	}

	p.logger.Debug("statement event published",
		zap.String("event_id", event.EventID),
		zap.String("operation", event.Operation),
	)
	return nil
}

// Close flushes pending writes and releases the writer. Safe to call twice.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.writer.Close()
	})
	return p.closeErr
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, StatementEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
