package fakes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/google/uuid"
)

// FakeChannel records rendered messages and can simulate slow or failing sends.
type FakeChannel struct {
	mu sync.Mutex

	Sent []models.RenderedMessage
	// FailFor fails sends for the listed follow-up ids.
	FailFor map[string]bool
	// Err fails every send when set.
	Err   error
	Delay time.Duration

	Calls       int
	inFlight    int
	MaxInFlight int
}

func (c *FakeChannel) Send(ctx context.Context, msg models.RenderedMessage, _ models.Contact) (*models.DeliveryReceipt, error) {
	c.mu.Lock()
	c.Calls++
	c.inFlight++
	if c.inFlight > c.MaxInFlight {
		c.MaxInFlight = c.inFlight
	}
	delay := c.Delay
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.FailFor[msg.FollowUpID] {
		return nil, errors.New("channel rejected message")
	}
	c.Sent = append(c.Sent, msg)
	return &models.DeliveryReceipt{DeliveryRef: uuid.NewString(), Channel: "fake", AcceptedAt: time.Now().UTC()}, nil
}

// CallCount returns the number of Send invocations.
func (c *FakeChannel) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls
}

// MaxConcurrent returns the highest number of overlapping sends observed.
func (c *FakeChannel) MaxConcurrent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.MaxInFlight
}
