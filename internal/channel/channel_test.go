package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/pkg/clock"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
	err       error
	entered   chan struct{}
	block     chan struct{}
}

func (f *fakePublisher) Publish(_, key string, _, _ bool, msg amqp.Publishing) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) jobs(t *testing.T) []SendJob {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SendJob, 0, len(f.published))
	for _, p := range f.published {
		var job SendJob
		require.NoError(t, json.Unmarshal(p.Body, &job))
		out = append(out, job)
	}
	return out
}

var sentAt = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testMessage() (models.RenderedMessage, models.Contact) {
	return models.RenderedMessage{FollowUpID: "fu-1", To: "ada@example.com", Subject: "Hi Ada", Body: "Hello"},
		models.Contact{ID: "c1", Email: "ada@example.com"}
}

func TestAMQPSend_WhenAccepted_ThenPersistentJSONJob(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	ch := newAMQPChannel(pub, "followup_sends", zap.NewNop(), clock.NewFixed(sentAt))
	msg, contact := testMessage()

	// Act
	receipt, err := ch.Send(context.Background(), msg, contact)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "amqp", receipt.Channel)
	assert.Equal(t, sentAt, receipt.AcceptedAt)
	require.Len(t, pub.published, 1)
	assert.Equal(t, []string{"followup_sends"}, pub.keys)
	assert.Equal(t, amqp.Persistent, pub.published[0].DeliveryMode)
	assert.Equal(t, receipt.DeliveryRef, pub.published[0].MessageId)

	var job SendJob
	require.NoError(t, json.Unmarshal(pub.published[0].Body, &job))
	assert.Equal(t, "fu-1", job.FollowUpID)
	assert.Equal(t, "c1", job.ContactID)
	assert.Equal(t, receipt.DeliveryRef, job.DeliveryRef)
}

func TestAMQPSend_WhenBrokerRejects_ThenError(t *testing.T) {
	// Arrange
	pub := &fakePublisher{err: errors.New("channel closed")}
	ch := newAMQPChannel(pub, "followup_sends", nil, clock.NewFixed(sentAt))
	msg, contact := testMessage()

	// Act
	receipt, err := ch.Send(context.Background(), msg, contact)

	// Assert
	assert.Nil(t, receipt)
	assert.ErrorContains(t, err, "channel closed")
}

func TestAMQPSend_WhenContextAlreadyDone_ThenNothingPublished(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	ch := newAMQPChannel(pub, "followup_sends", zap.NewNop(), clock.NewFixed(sentAt))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msg, contact := testMessage()

	// Act
	_, err := ch.Send(ctx, msg, contact)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.jobs(t))
}

func TestAMQPSend_WhenTimedOutBehindSlowPublish_ThenNeverPublishedLater(t *testing.T) {
	// Arrange
	pub := &fakePublisher{entered: make(chan struct{}, 2), block: make(chan struct{})}
	ch := newAMQPChannel(pub, "followup_sends", zap.NewNop(), clock.NewFixed(sentAt))
	first, contact := testMessage()
	firstDone := make(chan error, 1)
	go func() {
		_, err := ch.Send(context.Background(), first, contact)
		firstDone <- err
	}()
	<-pub.entered

	second := first
	second.FollowUpID = "fu-2"
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Act
	_, err := ch.Send(ctx, second, contact)
	close(pub.block)
	require.NoError(t, <-firstDone)

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	jobs := pub.jobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, "fu-1", jobs[0].FollowUpID)
}

func TestAMQPSend_WhenPublishOutlivesDeadline_ThenReportedAsSent(t *testing.T) {
	// Arrange
	pub := &fakePublisher{entered: make(chan struct{}, 1), block: make(chan struct{})}
	ch := newAMQPChannel(pub, "followup_sends", zap.NewNop(), clock.NewFixed(sentAt))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	msg, contact := testMessage()
	go func() {
		<-pub.entered
		<-ctx.Done()
		close(pub.block)
	}()

	// Act
	receipt, err := ch.Send(ctx, msg, contact)

	// Assert
	require.NoError(t, err)
	jobs := pub.jobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, receipt.DeliveryRef, jobs[0].DeliveryRef)
}

func TestAMQPClose_WhenNeverDialed_ThenNoError(t *testing.T) {
	ch := newAMQPChannel(&fakePublisher{}, "q", nil, clock.RealClock{})
	assert.NoError(t, ch.Close())
}

func TestLogSend_WhenCalled_ThenReceiptWithRef(t *testing.T) {
	// Arrange
	ch := NewLogChannel(zap.NewNop())
	msg, contact := testMessage()

	// Act
	receipt, err := ch.Send(context.Background(), msg, contact)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "log", receipt.Channel)
	assert.NotEmpty(t, receipt.DeliveryRef)
}

func TestLogSend_WhenContextCanceled_ThenError(t *testing.T) {
	// Arrange
	ch := NewLogChannel(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msg, contact := testMessage()

	// Act
	_, err := ch.Send(ctx, msg, contact)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
}
