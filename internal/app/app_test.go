package app

import (
	"context"
	"testing"
	"time"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.App {
	return config.App{
		DatabaseURL:    "sqlite::memory:",
		SendChannel:    "log",
		PollInterval:   time.Minute,
		BatchLimit:     20,
		MaxConcurrency: 4,
		SendTimeout:    time.Second,
		StoreTimeout:   time.Second,
	}
}

func TestBuild_WhenSQLiteAndLogChannel_ThenWiresEverything(t *testing.T) {
	// Act
	a, err := Build(context.Background(), testConfig(), zap.NewNop())

	// Assert
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Sequences)
	assert.NotNil(t, a.Events)
	assert.Equal(t, 4, a.Engine.MaxConcurrency())
	assert.Equal(t, 20, a.Engine.BatchLimit())
	assert.False(t, a.Poller.Running())
	assert.NoError(t, a.Store.Ping(context.Background()))
}

func TestBuild_WhenDatabaseURLMissing_ThenError(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = ""

	_, err := Build(context.Background(), cfg, zap.NewNop())

	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestBuild_WhenSendChannelUnknown_ThenError(t *testing.T) {
	cfg := testConfig()
	cfg.SendChannel = "carrier-pigeon"

	_, err := Build(context.Background(), cfg, zap.NewNop())

	assert.ErrorContains(t, err, "unknown send channel")
}

func TestExecute_WhenWiredEndToEnd_ThenDueFollowUpSent(t *testing.T) {
	// Arrange
	a, err := Build(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()
	db := a.DB
	_, err = db.ExecContext(ctx, `INSERT INTO sequences (id, org_id, campaign_id, name, total_steps, active, created_at, updated_at) VALUES ('seq-1','org-1','camp-1','Intro',1,1,?,?)`, time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO sequence_steps (id, sequence_id, step_number, subject, body, delay_days, delay_hours) VALUES ('st-1','seq-1',1,'Hi {{first_name}}','Hello {name}',0,0)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO contacts (id, org_id, email, name, unsubscribed) VALUES ('c1','org-1','ada@example.com','Ada Lovelace',0)`)
	require.NoError(t, err)

	start := time.Now().UTC().Add(-time.Hour)
	_, err = a.Sequences.GenerateFollowUps(ctx, "org-1", "seq-1", models.GenerateFollowUpsRequest{ContactIDs: []string{"c1"}, StartAt: &start})
	require.NoError(t, err)

	// Act
	result, err := a.Engine.ExecuteBatch(ctx, "org-1", 10)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalSent)
	logs, err := a.Events.ListActivity(ctx, "org-1", result.Executions[0].FollowUpID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
