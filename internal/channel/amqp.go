package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/pkg/clock"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const amqpChannelName = "amqp"

// publisher is the subset of *amqp.Channel used for delivery.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// SendJob is the body queued for the delivery workers.
type SendJob struct {
	DeliveryRef string `json:"delivery_ref"`
	FollowUpID  string `json:"followup_id"`
	ContactID   string `json:"contact_id"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// AMQPChannel hands rendered follow-ups to a durable RabbitMQ queue. A message
// counts as sent once the broker accepts the publish.
type AMQPChannel struct {
	// slot serializes publishes; amqp channels are not safe for concurrent use.
	slot   chan struct{}
	conn   *amqp.Connection
	ch     publisher
	queue  string
	clock  clock.Clock
	logger *zap.Logger
}

// NewAMQPChannel dials the broker and declares the durable queue.
func NewAMQPChannel(url, queue string, logger *zap.Logger) (*AMQPChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to queue: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open queue channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	c := newAMQPChannel(ch, q.Name, logger, clock.RealClock{})
	c.conn = conn
	return c, nil
}

func newAMQPChannel(pub publisher, queue string, logger *zap.Logger, clk clock.Clock) *AMQPChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPChannel{
		slot:   make(chan struct{}, 1),
		ch:     pub,
		queue:  queue,
		clock:  clk,
		logger: logger.With(zap.String("channel", amqpChannelName)),
	}
}

// Send publishes the message as a persistent JSON job.
func (c *AMQPChannel) Send(ctx context.Context, msg models.RenderedMessage, contact models.Contact) (*models.DeliveryReceipt, error) {
	job := SendJob{
		DeliveryRef: uuid.NewString(),
		FollowUpID:  msg.FollowUpID,
		ContactID:   contact.ID,
		To:          msg.To,
		Subject:     msg.Subject,
		Body:        msg.Body,
	}
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal send job: %w", err)
	}

	// Waiting for the slot honors ctx. Once the slot is held the publish runs
	// to completion, so a Send that reports an error has published nothing.
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.slot }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = c.ch.Publish("", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.DeliveryRef,
		Timestamp:    c.clock.Now(),
		Body:         body,
	})
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", c.queue, err)
	}

	c.logger.Debug("follow-up queued",
		zap.String("followup_id", msg.FollowUpID),
		zap.String("delivery_ref", job.DeliveryRef))
	return &models.DeliveryReceipt{
		DeliveryRef: job.DeliveryRef,
		Channel:     amqpChannelName,
		AcceptedAt:  c.clock.Now().UTC(),
	}, nil
}

// Close releases the broker connection.
func (c *AMQPChannel) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
