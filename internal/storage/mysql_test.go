package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T) (*MySQLClient, *sql.DB) {
	t.Helper()
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLClientWithClock(db, clock.NewFixed(testNow)), db
}

func seedSequence(t *testing.T, db *sql.DB, id, orgID string, active bool) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO sequences (id, org_id, campaign_id, name, total_steps, active, created_at, updated_at)
		VALUES (?, ?, 'camp-1', 'Onboarding', 0, ?, ?, ?)`, id, orgID, active, testNow, testNow)
	require.NoError(t, err)
}

func seedStep(t *testing.T, db *sql.DB, id, sequenceID string, number int, window string) {
	t.Helper()
	var sendWindow any
	if window != "" {
		sendWindow = window
	}
	_, err := db.Exec(`INSERT INTO sequence_steps (id, sequence_id, step_number, subject, body, delay_days, delay_hours, send_window, timezone)
		VALUES (?, ?, ?, 'Hi {{first_name}}', 'Body', 2, 0, ?, NULL)`, id, sequenceID, number, sendWindow)
	require.NoError(t, err)
}

func seedContact(t *testing.T, db *sql.DB, id, orgID, email string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO contacts (id, org_id, email, name, first_name, unsubscribed)
		VALUES (?, ?, ?, 'Ada Lovelace', NULL, ?)`, id, orgID, email, false)
	require.NoError(t, err)
}

func mustCreate(t *testing.T, client *MySQLClient, followUps []models.FollowUp) {
	t.Helper()
	n, err := client.CreateFollowUps(context.Background(), followUps)
	require.NoError(t, err)
	require.Equal(t, len(followUps), n)
}

func pendingFollowUp(id, contactID string, step int, at time.Time) models.FollowUp {
	return models.FollowUp{
		ID:          id,
		OrgID:       "org-1",
		SequenceID:  "seq-1",
		StepID:      "step-1",
		StepNumber:  step,
		CampaignID:  "camp-1",
		ContactID:   contactID,
		ScheduledAt: at,
		Status:      models.FollowUpStatusPending,
	}
}

func TestListDueFollowUps_WhenMixedRecords_ThenReturnsOnlyDuePendingOldestFirst(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{
		pendingFollowUp("fu-late", "c1", 1, testNow.Add(-time.Minute)),
		pendingFollowUp("fu-early", "c2", 1, testNow.Add(-time.Hour)),
		pendingFollowUp("fu-future", "c3", 1, testNow.Add(time.Hour)),
		pendingFollowUp("fu-canceled", "c4", 1, testNow.Add(-2*time.Hour)),
	})
	_, err := client.CancelFollowUpsForContact(ctx, "org-1", "c4", "", "stopped")
	require.NoError(t, err)

	// Act
	due, err := client.ListDueFollowUps(ctx, "org-1", testNow, 10)

	// Assert
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "fu-early", due[0].ID)
	assert.Equal(t, "fu-late", due[1].ID)
}

func TestListDueFollowUps_WhenLimitSmaller_ThenCaps(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{
		pendingFollowUp("fu-1", "c1", 1, testNow.Add(-3*time.Minute)),
		pendingFollowUp("fu-2", "c2", 1, testNow.Add(-2*time.Minute)),
		pendingFollowUp("fu-3", "c3", 1, testNow.Add(-time.Minute)),
	})

	// Act
	due, err := client.ListDueFollowUps(ctx, "org-1", testNow, 2)

	// Assert
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestListDueFollowUps_WhenOtherOrg_ThenExcluded(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{
		pendingFollowUp("fu-1", "c1", 1, testNow.Add(-time.Minute)),
	})

	// Act
	due, err := client.ListDueFollowUps(ctx, "org-2", testNow, 10)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestGetFollowUp_WhenMissing_ThenReturnsNotFound(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)

	// Act
	_, err := client.GetFollowUp(context.Background(), "org-1", "nope")

	// Assert
	assert.ErrorIs(t, err, ErrFollowUpNotFound)
}

func TestUpdateFollowUpStatus_WhenSent_ThenStoresOutcomeAndIncrementsAttempt(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{pendingFollowUp("fu-1", "c1", 1, testNow)})
	sentAt := testNow.Add(time.Second)
	outcome := "delivered"
	ref := "msg-123"

	// Act
	err := client.UpdateFollowUpStatus(ctx, "fu-1", models.FollowUpStatusSent, models.StatusUpdate{
		Outcome:          &outcome,
		SentAt:           &sentAt,
		SentMessageRef:   &ref,
		IncrementAttempt: true,
		UpdatedAt:        sentAt,
	})

	// Assert
	require.NoError(t, err)
	got, err := client.GetFollowUp(ctx, "org-1", "fu-1")
	require.NoError(t, err)
	assert.Equal(t, models.FollowUpStatusSent, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.SentAt)
	assert.True(t, sentAt.Equal(*got.SentAt))
	require.NotNil(t, got.SentMessageRef)
	assert.Equal(t, "msg-123", *got.SentMessageRef)
	assert.Nil(t, got.LastError)
}

func TestUpdateFollowUpStatus_WhenMissing_ThenReturnsNotFound(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)

	// Act
	err := client.UpdateFollowUpStatus(context.Background(), "nope", models.FollowUpStatusFailed, models.StatusUpdate{})

	// Assert
	assert.ErrorIs(t, err, ErrFollowUpNotFound)
}

func TestRescheduleFollowUp_WhenNotPending_ThenReturnsNotFound(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{pendingFollowUp("fu-1", "c1", 1, testNow)})
	require.NoError(t, client.UpdateFollowUpStatus(ctx, "fu-1", models.FollowUpStatusSent, models.StatusUpdate{}))

	// Act
	err := client.RescheduleFollowUp(ctx, "org-1", "fu-1", testNow.Add(time.Hour))

	// Assert
	assert.ErrorIs(t, err, ErrFollowUpNotFound)
}

func TestRescheduleFollowUp_WhenPending_ThenMovesScheduledAt(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{pendingFollowUp("fu-1", "c1", 1, testNow)})
	next := testNow.Add(48 * time.Hour)

	// Act
	err := client.RescheduleFollowUp(ctx, "org-1", "fu-1", next)

	// Assert
	require.NoError(t, err)
	got, err := client.GetFollowUp(ctx, "org-1", "fu-1")
	require.NoError(t, err)
	assert.True(t, next.Equal(got.ScheduledAt))
}

func TestCancelFollowUpsForContact_WhenSequenceGiven_ThenOnlyThatSequencePendingCanceled(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	other := pendingFollowUp("fu-other", "c1", 1, testNow)
	other.SequenceID = "seq-2"
	mustCreate(t, client, []models.FollowUp{
		pendingFollowUp("fu-1", "c1", 1, testNow),
		pendingFollowUp("fu-2", "c1", 2, testNow.Add(time.Hour)),
		other,
	})
	require.NoError(t, client.UpdateFollowUpStatus(ctx, "fu-1", models.FollowUpStatusSent, models.StatusUpdate{}))

	// Act
	count, err := client.CancelFollowUpsForContact(ctx, "org-1", "c1", "seq-1", "contact asked to stop")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	sent, _ := client.GetFollowUp(ctx, "org-1", "fu-1")
	assert.Equal(t, models.FollowUpStatusSent, sent.Status)
	canceled, _ := client.GetFollowUp(ctx, "org-1", "fu-2")
	assert.Equal(t, models.FollowUpStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.Outcome)
	assert.Equal(t, "contact asked to stop", *canceled.Outcome)
	untouched, _ := client.GetFollowUp(ctx, "org-1", "fu-other")
	assert.Equal(t, models.FollowUpStatusPending, untouched.Status)
}

func TestCreateFollowUps_WhenTripleAlreadyPending_ThenRowLeftOut(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{pendingFollowUp("fu-1", "c1", 1, testNow)})

	// Act
	n, err := client.CreateFollowUps(ctx, []models.FollowUp{
		pendingFollowUp("fu-dup", "c1", 1, testNow.Add(time.Hour)),
		pendingFollowUp("fu-2", "c1", 2, testNow.Add(time.Hour)),
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = client.GetFollowUp(ctx, "org-1", "fu-dup")
	assert.ErrorIs(t, err, ErrFollowUpNotFound)
	_, err = client.GetFollowUp(ctx, "org-1", "fu-2")
	assert.NoError(t, err)
}

func TestCreateFollowUps_WhenPreviousAttemptTerminal_ThenNewPendingAllowed(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{pendingFollowUp("fu-1", "c1", 1, testNow)})
	require.NoError(t, client.UpdateFollowUpStatus(ctx, "fu-1", models.FollowUpStatusFailed, models.StatusUpdate{}))

	// Act
	n, err := client.CreateFollowUps(ctx, []models.FollowUp{pendingFollowUp("fu-retry", "c1", 1, testNow.Add(time.Hour))})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateFollowUps_WhenDuplicateID_ThenErrorAndNothingStored(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{pendingFollowUp("fu-1", "c1", 1, testNow)})

	// Act
	_, err := client.CreateFollowUps(ctx, []models.FollowUp{
		pendingFollowUp("fu-2", "c2", 1, testNow),
		pendingFollowUp("fu-1", "c3", 1, testNow),
	})

	// Assert
	require.Error(t, err)
	_, err = client.GetFollowUp(ctx, "org-1", "fu-2")
	assert.ErrorIs(t, err, ErrFollowUpNotFound)
}

func TestCreateFollowUps_WhenConcurrentEnrollments_ThenOnePendingPerTriple(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)

	// Act
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := client.CreateFollowUps(ctx, []models.FollowUp{
				pendingFollowUp(fmt.Sprintf("fu-%d-1", i), "c1", 1, testNow),
				pendingFollowUp(fmt.Sprintf("fu-%d-2", i), "c1", 2, testNow.Add(time.Hour)),
			})
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	// Assert
	assert.Equal(t, 2, total)
	rows, err := client.ListFollowUpsByContact(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMarkFollowUpEngagement_WhenRepeated_ThenKeepsFirstTimestamp(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	mustCreate(t, client, []models.FollowUp{pendingFollowUp("fu-1", "c1", 1, testNow)})
	first := testNow.Add(time.Hour)

	// Act
	require.NoError(t, client.MarkFollowUpEngagement(ctx, "org-1", "fu-1", models.SignalTypeOpen, first))
	require.NoError(t, client.MarkFollowUpEngagement(ctx, "org-1", "fu-1", models.SignalTypeOpen, first.Add(time.Hour)))

	// Assert
	got, err := client.GetFollowUp(ctx, "org-1", "fu-1")
	require.NoError(t, err)
	require.NotNil(t, got.OpenedAt)
	assert.True(t, first.Equal(*got.OpenedAt))
	assert.Nil(t, got.ClickedAt)
}

func TestMarkFollowUpEngagement_WhenUnsupportedSignal_ThenErrors(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)

	// Act
	err := client.MarkFollowUpEngagement(context.Background(), "org-1", "fu-1", models.SignalTypeBounce, testNow)

	// Assert
	assert.Error(t, err)
}

func TestGetSequenceAndSteps_WhenSeeded_ThenOrderedByStepNumber(t *testing.T) {
	// Arrange
	client, db := newTestClient(t)
	ctx := context.Background()
	seedSequence(t, db, "seq-1", "org-1", true)
	seedStep(t, db, "step-2", "seq-1", 2, "")
	seedStep(t, db, "step-1", "seq-1", 1, "0 9 * * 1-5")

	// Act
	seq, seqErr := client.GetSequence(ctx, "org-1", "seq-1")
	steps, stepsErr := client.ListSteps(ctx, "seq-1")

	// Assert
	require.NoError(t, seqErr)
	require.NoError(t, stepsErr)
	assert.True(t, seq.Active)
	require.Len(t, steps, 2)
	assert.Equal(t, "step-1", steps[0].ID)
	assert.Equal(t, "0 9 * * 1-5", steps[0].SendWindow)
	assert.Equal(t, "", steps[1].SendWindow)
	assert.Equal(t, 48*time.Hour, steps[1].Delay())
}

func TestGetSequence_WhenOtherOrg_ThenNotFound(t *testing.T) {
	// Arrange
	client, db := newTestClient(t)
	seedSequence(t, db, "seq-1", "org-1", true)

	// Act
	_, err := client.GetSequence(context.Background(), "org-2", "seq-1")

	// Assert
	assert.ErrorIs(t, err, ErrSequenceNotFound)
}

func TestGetStep_WhenMissing_ThenNotFound(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)

	// Act
	_, err := client.GetStep(context.Background(), "missing")

	// Assert
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestUpdateSequenceStepCount_WhenExists_ThenStored(t *testing.T) {
	// Arrange
	client, db := newTestClient(t)
	ctx := context.Background()
	seedSequence(t, db, "seq-1", "org-1", true)

	// Act
	err := client.UpdateSequenceStepCount(ctx, "org-1", "seq-1", 3)

	// Assert
	require.NoError(t, err)
	seq, err := client.GetSequence(ctx, "org-1", "seq-1")
	require.NoError(t, err)
	assert.Equal(t, 3, seq.TotalSteps)
	assert.ErrorIs(t, client.UpdateSequenceStepCount(ctx, "org-1", "missing", 1), ErrSequenceNotFound)
}

func TestGetContact_WhenNullableNames_ThenEmptyStrings(t *testing.T) {
	// Arrange
	client, db := newTestClient(t)
	ctx := context.Background()
	seedContact(t, db, "c1", "org-1", "ada@example.com")

	// Act
	contact, err := client.GetContact(ctx, "org-1", "c1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", contact.Email)
	assert.Equal(t, "Ada Lovelace", contact.Name)
	assert.Equal(t, "", contact.FirstName)
	assert.False(t, contact.Unsubscribed)
	_, err = client.GetContact(ctx, "org-2", "c1")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestMarkContactUnsubscribed_WhenExists_ThenFlagged(t *testing.T) {
	// Arrange
	client, db := newTestClient(t)
	ctx := context.Background()
	seedContact(t, db, "c1", "org-1", "ada@example.com")

	// Act
	err := client.MarkContactUnsubscribed(ctx, "org-1", "c1")

	// Assert
	require.NoError(t, err)
	contact, err := client.GetContact(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.True(t, contact.Unsubscribed)
}

func TestGetOrgPolicy_WhenMissing_ThenDefault(t *testing.T) {
	// Arrange
	client, db := newTestClient(t)
	ctx := context.Background()
	_, err := db.Exec(`INSERT INTO org_policies (org_id, sending_paused, stop_on_reply, require_previous_step) VALUES (?, ?, ?, ?)`,
		"org-paused", true, false, false)
	require.NoError(t, err)

	// Act
	def, defErr := client.GetOrgPolicy(ctx, "org-1")
	paused, pausedErr := client.GetOrgPolicy(ctx, "org-paused")

	// Assert
	require.NoError(t, defErr)
	require.NoError(t, pausedErr)
	assert.Equal(t, models.DefaultOrgPolicy("org-1"), def)
	assert.True(t, paused.SendingPaused)
	assert.False(t, paused.StopOnReply)
}

func TestSignals_WhenCreated_ThenListedInOccurrenceOrder(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	seq := "seq-1"
	require.NoError(t, client.CreateSignal(ctx, &models.Signal{ID: "s2", OrgID: "org-1", ContactID: "c1", Type: models.SignalTypeReply, SequenceID: &seq, OccurredAt: testNow}))
	require.NoError(t, client.CreateSignal(ctx, &models.Signal{ID: "s1", OrgID: "org-1", ContactID: "c1", Type: models.SignalTypeOpen, OccurredAt: testNow.Add(-time.Hour)}))

	// Act
	signals, err := client.ListSignals(ctx, "org-1", "c1")

	// Assert
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "s1", signals[0].ID)
	assert.Nil(t, signals[0].SequenceID)
	require.NotNil(t, signals[1].SequenceID)
	assert.Equal(t, "seq-1", *signals[1].SequenceID)
}

func TestActivityLogs_WhenCreated_ThenListedForFollowUp(t *testing.T) {
	// Arrange
	client, _ := newTestClient(t)
	ctx := context.Background()
	entry := &models.ActivityLog{
		ID: "log-1", OrgID: "org-1", FollowUpID: "fu-1", ContactID: "c1", SequenceID: "seq-1",
		EventType: models.LifecycleEventSkipped, Status: models.FollowUpStatusSkipped,
		Detail: "contact replied", OccurredAt: testNow,
	}

	// Act
	require.NoError(t, client.CreateActivityLog(ctx, entry))
	logs, err := client.ListActivityLogs(ctx, "org-1", "fu-1")

	// Assert
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "contact replied", logs[0].Detail)
	assert.Equal(t, models.FollowUpStatusSkipped, logs[0].Status)
}

func TestApplySchema_WhenRunTwice_ThenNoError(t *testing.T) {
	// Arrange
	_, db := newTestClient(t)

	// Act
	err := ApplySchema(context.Background(), db)

	// Assert
	assert.NoError(t, err)
}
