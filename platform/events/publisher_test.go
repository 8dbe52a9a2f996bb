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
	topic := "test-topic"

	// Act
	publisher := NewPublisher(brokers, topic, zap.NewNop())

	// Assert
	require.NotNil(t, publisher)
	require.NotNil(t, publisher.writer)
	assert.NotNil(t, publisher.logger)
	assert.Equal(t, topic, publisher.writer.Topic)
}

func TestNewPublisher_WhenCreatedWithMultipleBrokers_ThenConfiguresCorrectly(t *testing.T) {
	// Arrange
	brokers := []string{"broker1:9092", "broker2:9092", "broker3:9092"}

	// Act
	publisher := NewPublisher(brokers, "followup-lifecycle", nil)

	// Assert
	assert.Equal(t, "broker1:9092,broker2:9092,broker3:9092", publisher.writer.Addr.String())
	assert.NotNil(t, publisher.logger)
}

func TestNewPublisher_WhenCreated_ThenHasProductionSettings(t *testing.T) {
	// Act
	publisher := NewPublisher([]string{"localhost:9092"}, "test-topic", zap.NewNop())

	// Assert
	assert.Equal(t, kafka.RequireAll, publisher.writer.RequiredAcks)
	assert.Equal(t, 3, publisher.writer.MaxAttempts)
	assert.Equal(t, 10*time.Second, publisher.writer.WriteTimeout)
	assert.IsType(t, &kafka.Hash{}, publisher.writer.Balancer)
}

func TestPublish_WhenContextCanceled_ThenReturnsError(t *testing.T) {
	// Arrange
	publisher := NewPublisher([]string{"127.0.0.1:1"}, "test-topic", zap.NewNop())
	defer publisher.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	err := publisher.Publish(ctx, Message{Key: "fu-1", Type: "followup.sent", OccurredAt: time.Now()})

	// Assert
	assert.Error(t, err)
}

func TestMessage_WhenMarshaled_ThenKeyOmittedAndPayloadNested(t *testing.T) {
	// Arrange
	msg := Message{
		Key:        "fu-1",
		Type:       "followup.sent",
		OccurredAt: time.Date(2025, 11, 6, 10, 30, 0, 0, time.UTC),
		Payload:    map[string]any{"followup_id": "fu-1"},
	}

	// Act
	raw, err := json.Marshal(msg)

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"followup.sent","occurred_at":"2025-11-06T10:30:00Z","payload":{"followup_id":"fu-1"}}`, string(raw))
}

func TestClose_WhenCalledMultipleTimes_ThenDoesNotPanic(t *testing.T) {
	// Arrange
	publisher := NewPublisher([]string{"localhost:9092"}, "test-topic", zap.NewNop())

	// Act & Assert
	assert.NotPanics(t, func() {
		_ = publisher.Close()
		_ = publisher.Close()
	})
}
