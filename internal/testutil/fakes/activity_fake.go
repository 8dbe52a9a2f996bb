package fakes

import (
	"context"
	"sync"

	"github.com/dhima/followup-engine/internal/models"
)

// FakeActivity captures activity records and can simulate failures.
type FakeActivity struct {
	mu      sync.Mutex
	Records []models.ActivityLog
	Err     error
}

func (a *FakeActivity) Record(_ context.Context, entry models.ActivityLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	a.Records = append(a.Records, entry)
	return nil
}

// Count returns the number of stored records.
func (a *FakeActivity) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Records)
}
