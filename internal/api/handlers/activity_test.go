package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/internal/models"
	"github.com/stretchr/testify/assert"
)

type fakeActivityLister struct {
	logs []models.ActivityLog
	err  error
}

func (f *fakeActivityLister) ListActivity(context.Context, string, string) ([]models.ActivityLog, error) {
	return f.logs, f.err
}

func TestListActivity_WhenLogsExist_ThenOK(t *testing.T) {
	// Arrange
	svc := &fakeActivityLister{logs: []models.ActivityLog{{ID: "log-1", FollowUpID: "fu-1", EventType: models.LifecycleEventSent}}}
	r := newOrgRouter()
	r.GET("/followups/:id/activity", NewActivityHandler(svc, logging.NewNoOpLogger()).ListActivity)

	// Act
	w := doRequest(r, http.MethodGet, "/followups/fu-1/activity", "")

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "followup.sent")
}

func TestListActivity_WhenStoreFails_ThenInternalError(t *testing.T) {
	// Arrange
	r := newOrgRouter()
	r.GET("/followups/:id/activity", NewActivityHandler(&fakeActivityLister{err: errors.New("db down")}, logging.NewNoOpLogger()).ListActivity)

	// Act
	w := doRequest(r, http.MethodGet, "/followups/fu-1/activity", "")

	// Assert
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
