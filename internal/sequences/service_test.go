package sequences

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/internal/storage"
	"github.com/dhima/followup-engine/internal/testutil/fakes"
	"github.com/dhima/followup-engine/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Monday.
var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *fakes.FakeStore) {
	t.Helper()
	store := fakes.NewFakeStore()
	store.Clock = clock.NewFixed(now)
	store.Sequences["seq-1"] = models.Sequence{ID: "seq-1", OrgID: "org-1", CampaignID: "camp-1", TotalSteps: 2, Active: true}
	store.Steps["st-1"] = models.Step{ID: "st-1", SequenceID: "seq-1", StepNumber: 1, Subject: "Hi", DelayDays: 1}
	store.Steps["st-2"] = models.Step{ID: "st-2", SequenceID: "seq-1", StepNumber: 2, Subject: "Again", DelayDays: 2, DelayHours: 3}
	store.Contacts["c1"] = models.Contact{ID: "c1", OrgID: "org-1", Email: "ada@example.com"}
	store.Contacts["c2"] = models.Contact{ID: "c2", OrgID: "org-1", Email: "alan@example.com"}
	return NewServiceWithClock(store, zap.NewNop(), clock.NewFixed(now)), store
}

func followUpsFor(store *fakes.FakeStore, contactID string) map[int]models.FollowUp {
	out := make(map[int]models.FollowUp)
	for _, fu := range store.FollowUps {
		if fu.ContactID == contactID {
			out[fu.StepNumber] = fu
		}
	}
	return out
}

func TestGenerateFollowUps_WhenContactsEnrolled_ThenStepsChainDelays(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)

	// Act
	resp, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1", "c2", "c1"}})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Created)
	assert.Zero(t, resp.Skipped)

	got := followUpsFor(store, "c1")
	require.Len(t, got, 2)
	assert.Equal(t, now.Add(24*time.Hour), got[1].ScheduledAt)
	assert.Equal(t, now.Add(24*time.Hour+51*time.Hour), got[2].ScheduledAt)
	assert.Equal(t, models.FollowUpStatusPending, got[1].Status)
	assert.Equal(t, "camp-1", got[1].CampaignID)
	assert.Equal(t, "st-2", got[2].StepID)
}

func TestGenerateFollowUps_WhenSendWindowSet_ThenSnapsIntoWindow(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	step := store.Steps["st-1"]
	step.SendWindow = "0 9 * * 1-5"
	store.Steps["st-1"] = step
	start := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) // Friday

	// Act
	_, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1"}, StartAt: &start})

	// Assert
	require.NoError(t, err)
	got := followUpsFor(store, "c1")
	monday := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, got[1].ScheduledAt)
	assert.Equal(t, monday.Add(51*time.Hour), got[2].ScheduledAt)
}

func TestGenerateFollowUps_WhenSendWindowNeverOpens_ThenValidationErrorAndNothingCreated(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	step := store.Steps["st-2"]
	step.SendWindow = "0 0 30 2 *"
	store.Steps["st-2"] = step

	// Act
	_, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1"}})

	// Assert
	var vErr ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Error(), "step 2")
	assert.Empty(t, store.FollowUps)
}

func TestGenerateFollowUps_WhenAlreadyPending_ThenSkipsThoseSteps(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.FollowUps["existing"] = models.FollowUp{ID: "existing", OrgID: "org-1", SequenceID: "seq-1", StepID: "st-1", StepNumber: 1, ContactID: "c1", Status: models.FollowUpStatusPending, ScheduledAt: now}

	// Act
	resp, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1"}})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Skipped)
	assert.Len(t, store.FollowUps, 2)
}

func TestGenerateFollowUps_WhenPendingRowMissedByRead_ThenStoreConflictCountedSkipped(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.FollowUps["existing"] = models.FollowUp{ID: "existing", OrgID: "org-1", SequenceID: "seq-1", StepID: "st-1", StepNumber: 1, ContactID: "c1", Status: models.FollowUpStatusPending, ScheduledAt: now}
	store.StaleContactReads = true

	// Act
	resp, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1"}})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Skipped)
	assert.Len(t, store.FollowUps, 2)
}

func TestGenerateFollowUps_WhenEnrolledConcurrently_ThenOnePendingPerStep(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	// Act
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1"}})
			assert.NoError(t, err)
			mu.Lock()
			created += resp.Created
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, 2, created)
	assert.Len(t, followUpsFor(store, "c1"), 2)
	assert.Len(t, store.FollowUps, 2)
}

func TestGenerateFollowUps_WhenSequenceInactive_ThenValidationError(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	seq := store.Sequences["seq-1"]
	seq.Active = false
	store.Sequences["seq-1"] = seq

	// Act
	_, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1"}})

	// Assert
	var vErr ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Empty(t, store.FollowUps)
}

func TestGenerateFollowUps_WhenContactUnknown_ThenNothingCreated(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)

	// Act
	_, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1", "ghost"}})

	// Assert
	assert.ErrorIs(t, err, storage.ErrContactNotFound)
	assert.Empty(t, store.FollowUps)
}

func TestGenerateFollowUps_WhenNoContacts_ThenValidationError(t *testing.T) {
	// Arrange
	svc, _ := newTestService(t)

	// Act
	_, err := svc.GenerateFollowUps(context.Background(), "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{" "}})

	// Assert
	var vErr ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestReschedule_WhenPending_ThenMovesRecord(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.FollowUps["fu-1"] = models.FollowUp{ID: "fu-1", OrgID: "org-1", SequenceID: "seq-1", StepID: "st-1", StepNumber: 1, ContactID: "c1", Status: models.FollowUpStatusPending, ScheduledAt: now}
	at := now.Add(48 * time.Hour)

	// Act
	fu, err := svc.Reschedule(context.Background(), "org-1", "fu-1", at)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "fu-1", fu.ID)
	assert.Equal(t, at, store.Get("fu-1").ScheduledAt)
}

func TestReschedule_WhenFailed_ThenCreatesRetryAndKeepsHistory(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.FollowUps["fu-1"] = models.FollowUp{ID: "fu-1", OrgID: "org-1", SequenceID: "seq-1", StepID: "st-1", StepNumber: 1, ContactID: "c1", Status: models.FollowUpStatusFailed, AttemptCount: 1, ScheduledAt: now}
	at := now.Add(time.Hour)

	// Act
	fu, err := svc.Reschedule(context.Background(), "org-1", "fu-1", at)

	// Assert
	require.NoError(t, err)
	assert.NotEqual(t, "fu-1", fu.ID)
	assert.Equal(t, models.FollowUpStatusPending, fu.Status)
	assert.Equal(t, at, fu.ScheduledAt)
	assert.Zero(t, fu.AttemptCount)
	assert.Equal(t, models.FollowUpStatusFailed, store.Get("fu-1").Status)
	assert.Len(t, store.FollowUps, 2)
}

func TestReschedule_WhenRetryLosesPendingSlot_ThenValidationError(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.FollowUps["fu-1"] = models.FollowUp{ID: "fu-1", OrgID: "org-1", SequenceID: "seq-1", StepID: "st-1", StepNumber: 1, ContactID: "c1", Status: models.FollowUpStatusFailed, ScheduledAt: now}
	store.FollowUps["fu-2"] = models.FollowUp{ID: "fu-2", OrgID: "org-1", SequenceID: "seq-1", StepID: "st-1", StepNumber: 1, ContactID: "c1", Status: models.FollowUpStatusPending, ScheduledAt: now}
	store.StaleContactReads = true

	// Act
	_, err := svc.Reschedule(context.Background(), "org-1", "fu-1", now.Add(time.Hour))

	// Assert
	var vErr ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, store.FollowUps, 2)
}

func TestReschedule_WhenSentOrCanceled_ThenValidationError(t *testing.T) {
	for _, status := range []models.FollowUpStatus{models.FollowUpStatusSent, models.FollowUpStatusCanceled} {
		t.Run(string(status), func(t *testing.T) {
			// Arrange
			svc, store := newTestService(t)
			store.FollowUps["fu-1"] = models.FollowUp{ID: "fu-1", OrgID: "org-1", SequenceID: "seq-1", StepID: "st-1", ContactID: "c1", Status: status}

			// Act
			_, err := svc.Reschedule(context.Background(), "org-1", "fu-1", now.Add(time.Hour))

			// Assert
			var vErr ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestReschedule_WhenMissing_ThenNotFound(t *testing.T) {
	// Arrange
	svc, _ := newTestService(t)

	// Act
	_, err := svc.Reschedule(context.Background(), "org-1", "nope", now)

	// Assert
	assert.ErrorIs(t, err, storage.ErrFollowUpNotFound)
}

func TestCancelSequenceForContact_WhenPending_ThenCanceledAndExcludedFromDue(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.FollowUps["fu-1"] = models.FollowUp{ID: "fu-1", OrgID: "org-1", SequenceID: "seq-1", ContactID: "c1", Status: models.FollowUpStatusPending, ScheduledAt: now.Add(-time.Hour)}
	store.FollowUps["fu-2"] = models.FollowUp{ID: "fu-2", OrgID: "org-1", SequenceID: "seq-1", ContactID: "c1", Status: models.FollowUpStatusSent, ScheduledAt: now.Add(-2 * time.Hour)}
	store.FollowUps["fu-3"] = models.FollowUp{ID: "fu-3", OrgID: "org-1", SequenceID: "seq-1", ContactID: "c2", Status: models.FollowUpStatusPending, ScheduledAt: now.Add(-time.Hour)}

	// Act
	resp, err := svc.CancelSequenceForContact(context.Background(), "org-1", "seq-1", models.CancelSequenceRequest{ContactID: "c1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Canceled)
	canceled := store.Get("fu-1")
	assert.Equal(t, models.FollowUpStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.Outcome)
	assert.Equal(t, "sequence canceled for contact", *canceled.Outcome)
	assert.Equal(t, models.FollowUpStatusSent, store.Get("fu-2").Status)

	due, err := svc.ListDue(context.Background(), "org-1", 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "fu-3", due[0].ID)
}

func TestCancelSequenceForContact_WhenNoContact_ThenValidationError(t *testing.T) {
	// Arrange
	svc, _ := newTestService(t)

	// Act
	_, err := svc.CancelSequenceForContact(context.Background(), "org-1", "seq-1", models.CancelSequenceRequest{})

	// Assert
	var vErr ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestListDue_WhenLimitAboveMax_ThenClamped(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		store.FollowUps[id] = models.FollowUp{ID: id, OrgID: "org-1", ContactID: "c1", Status: models.FollowUpStatusPending, ScheduledAt: now.Add(-time.Minute)}
	}

	// Act
	due, err := svc.ListDue(context.Background(), "org-1", 10_000)

	// Assert
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestSequenceSummary_WhenFollowUpsExist_ThenCountsAndRates(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	opened := now
	store.FollowUps["a"] = models.FollowUp{ID: "a", OrgID: "org-1", SequenceID: "seq-1", ContactID: "c1", Status: models.FollowUpStatusSent, OpenedAt: &opened}
	store.FollowUps["b"] = models.FollowUp{ID: "b", OrgID: "org-1", SequenceID: "seq-1", ContactID: "c2", Status: models.FollowUpStatusSent}
	store.FollowUps["c"] = models.FollowUp{ID: "c", OrgID: "org-1", SequenceID: "seq-1", ContactID: "c2", Status: models.FollowUpStatusPending}

	// Act
	summary, err := svc.SequenceSummary(context.Background(), "org-1", "seq-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.ByStatus[models.FollowUpStatusSent])
	assert.Equal(t, 0, summary.ByStatus[models.FollowUpStatusFailed])
	assert.InDelta(t, 0.5, summary.OpenRate, 0.0001)
}

func TestContactSummary_WhenSequenceDeleted_ThenUsesHighestStep(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.FollowUps["a"] = models.FollowUp{ID: "a", OrgID: "org-1", SequenceID: "gone", StepNumber: 1, ContactID: "c1", Status: models.FollowUpStatusSent}
	store.FollowUps["b"] = models.FollowUp{ID: "b", OrgID: "org-1", SequenceID: "gone", StepNumber: 2, ContactID: "c1", Status: models.FollowUpStatusPending, ScheduledAt: now}

	// Act
	summary, err := svc.ContactSummary(context.Background(), "org-1", "c1")

	// Assert
	require.NoError(t, err)
	require.Len(t, summary.Sequences, 1)
	assert.Equal(t, 2, summary.Sequences[0].TotalSteps)
	assert.Equal(t, models.ContactSequenceActive, summary.Sequences[0].State)
}

func TestSyncStepCount_WhenStepsChanged_ThenPersistsCount(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	store.Steps["st-3"] = models.Step{ID: "st-3", SequenceID: "seq-1", StepNumber: 3}

	// Act
	n, err := svc.SyncStepCount(context.Background(), "org-1", "seq-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, store.Sequences["seq-1"].TotalSteps)
}
