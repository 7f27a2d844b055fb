package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPublisher_WhenCreated_ThenReturnsPublisherWithWriter(t *testing.T) {
	// Arrange
	brokers := []string{"localhost:9092"}
	topic := "statement-audit"

	// Act
	publisher := NewPublisher(brokers, topic, zap.NewNop())

	// Assert
	require.NotNil(t, publisher)
	require.NotNil(t, publisher.writer)
	require.NotNil(t, publisher.logger)
	assert.Equal(t, topic, publisher.writer.Topic)
}

func TestNewPublisher_WhenCreatedWithMultipleBrokers_ThenConfiguresCorrectly(t *testing.T) {
	// Arrange
	brokers := []string{"broker1:9092", "broker2:9092", "broker3:9092"}

	// Act
	publisher := NewPublisher(brokers, "statement-audit", zap.NewNop())

	// Assert
	assert.Equal(t, "broker1:9092,broker2:9092,broker3:9092", publisher.writer.Addr.String())
}

func TestNewPublisher_WhenCreated_ThenHasProductionSettings(t *testing.T) {
	// Act
	publisher := NewPublisher([]string{"localhost:9092"}, "statement-audit", zap.NewNop())

	// Assert
	assert.Equal(t, kafka.RequireAll, publisher.writer.RequiredAcks)
	assert.Equal(t, 3, publisher.writer.MaxAttempts)
	assert.Equal(t, 10*time.Second, publisher.writer.WriteTimeout)
	assert.IsType(t, &kafka.LeastBytes{}, publisher.writer.Balancer)
}

func TestPublish_WhenContextCanceled_ThenReturnsError(t *testing.T) {
	// Arrange
	publisher := NewPublisher([]string{"127.0.0.1:1"}, "statement-audit", zap.NewNop())
	defer func() { _ = publisher.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	err := publisher.Publish(ctx, StatementEvent{EventID: "evt-1", Operation: "insert", ExecutedAt: time.Now()})

	// Assert
	assert.Error(t, err)
}

func TestClose_WhenCalledMultipleTimes_ThenDoesNotPanic(t *testing.T) {
	// Arrange
	publisher := NewPublisher([]string{"localhost:9092"}, "statement-audit", zap.NewNop())

	// Act & Assert
	assert.NotPanics(t, func() {
		_ = publisher.Close()
		_ = publisher.Close()
	})
}

func TestStatementEvent_WhenMarshaledToJSON_ThenUsesSnakeCaseFields(t *testing.T) {
	// Arrange
	id := int64(42)
	event := StatementEvent{
		EventID:      "evt-123",
		Operation:    "insert",
		Query:        "INSERT INTO t (name) VALUES (?)",
		ParamTypes:   "s",
		LastInsertID: &id,
		RowsAffected: 1,
		RequestID:    "req-1",
		ExecutedAt:   time.Date(2025, 11, 6, 10, 30, 0, 0, time.UTC),
	}

	// Act
	b, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))

	// Assert
	assert.Equal(t, "evt-123", decoded["event_id"])
	assert.Equal(t, "insert", decoded["operation"])
	assert.Equal(t, "s", decoded["param_types"])
	assert.Equal(t, float64(42), decoded["last_insert_id"])
	assert.Equal(t, float64(1), decoded["rows_affected"])
	assert.Equal(t, "2025-11-06T10:30:00Z", decoded["executed_at"])
}

func TestNopPublisher_WhenUsed_ThenNeverFails(t *testing.T) {
	var p NopPublisher

	assert.NoError(t, p.Publish(context.Background(), StatementEvent{}))
	assert.NoError(t, p.Close())
}
