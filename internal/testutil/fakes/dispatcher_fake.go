package fakes

import (
	"context"
	"sync"

	"github.com/dhima/followup-engine/internal/models"
)

// FakeDispatcher counts batch dispatches for poller tests.
type FakeDispatcher struct {
	mu    sync.Mutex
	calls int
	orgs  []string
	Err   error
	// PanicOn panics on the n-th call (1-based) when non-zero.
	PanicOn int
}

func (d *FakeDispatcher) ExecuteBatch(_ context.Context, orgID string, _ int) (*models.BatchResult, error) {
	d.mu.Lock()
	d.calls++
	n := d.calls
	d.orgs = append(d.orgs, orgID)
	err := d.Err
	panicOn := d.PanicOn
	d.mu.Unlock()

	if panicOn != 0 && n == panicOn {
		panic("dispatch exploded")
	}
	if err != nil {
		return nil, err
	}
	return &models.BatchResult{Executions: []models.ExecutionResult{}}, nil
}

// Calls returns how many dispatches ran.
func (d *FakeDispatcher) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// OrgIDs returns a copy of the org ids dispatched so far, in call order.
func (d *FakeDispatcher) OrgIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.orgs...)
}
