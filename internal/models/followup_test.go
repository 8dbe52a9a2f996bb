package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchResultAdd_WhenCanceledAfterListing_ThenCountedSkipped(t *testing.T) {
	// Arrange
	var b BatchResult
	msg := "send failed: broker closed"

	// Act
	b.Add(ExecutionResult{FollowUpID: "fu-1", Status: FollowUpStatusSent})
	b.Add(ExecutionResult{FollowUpID: "fu-2", Status: FollowUpStatusCanceled, Outcome: "sequence canceled for contact"})
	b.Add(ExecutionResult{FollowUpID: "fu-3", Status: FollowUpStatusSkipped})
	b.Add(ExecutionResult{FollowUpID: "fu-4", Status: FollowUpStatusFailed, ErrorMessage: &msg})

	// Assert
	assert.Equal(t, 4, b.TotalProcessed)
	assert.Equal(t, 1, b.TotalSent)
	assert.Equal(t, 2, b.TotalSkipped)
	assert.Equal(t, 1, b.TotalFailed)
	assert.Len(t, b.Executions, 4)
}
