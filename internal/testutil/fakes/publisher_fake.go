package fakes

import (
	"context"
	"errors"
	"sync"

	platformEvents "github.com/dhima/followup-engine/platform/events"
)

// FakePublisher captures published messages and can simulate failures.
type FakePublisher struct {
	mu        sync.Mutex
	Messages  []platformEvents.Message
	FailNext  bool
	FailError error
}

func (p *FakePublisher) Publish(_ context.Context, m platformEvents.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailNext {
		p.FailNext = false
		if p.FailError == nil {
			p.FailError = errors.New("publish failed")
		}
		return p.FailError
	}
	p.Messages = append(p.Messages, m)
	return nil
}

// Published returns a copy of the captured messages.
func (p *FakePublisher) Published() []platformEvents.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformEvents.Message(nil), p.Messages...)
}
