package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync [integration-id]", syncCmd.Use)
}

func TestSyncCmd_Short(t *testing.T) {
	assert.Equal(t, "Synchronise integrations", syncCmd.Short)
}

func TestSyncCmd_RejectsExtraArgs(t *testing.T) {
	defer setupFramework(&mockFramework{})()

	_, err := execute("sync", "a", "b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts at most 1 arg(s)")
}

func TestSyncCmd_SingleIntegration(t *testing.T) {
	defer setupFramework(&mockFramework{results: map[string]domain.SyncResult{
		"issues": {
			IntegrationID:    "issues",
			Success:          true,
			RecordsProcessed: 3,
			RecordsCreated:   2,
			RecordsUpdated:   1,
			Duration:         1200 * time.Microsecond,
		},
	}})()

	out, err := execute("sync", "issues")

	require.NoError(t, err)
	assert.Contains(t, out, "Synchronising integration: issues...")
	assert.Contains(t, out, "Integration issues synchronised: 3 processed, 2 created, 1 updated, 0 deleted (1ms)")
}

func TestSyncCmd_SingleIntegrationFailure(t *testing.T) {
	defer setupFramework(&mockFramework{results: map[string]domain.SyncResult{
		"issues": {IntegrationID: "issues", Errors: []string{"server not connected"}},
	}})()

	_, err := execute("sync", "issues")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync of issues failed: server not connected")
}

func TestSyncCmd_UnknownIntegration(t *testing.T) {
	defer setupFramework(&mockFramework{})()

	_, err := execute("sync", "ghost")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncCmd_SingleIntegrationJSON(t *testing.T) {
	defer setupFramework(&mockFramework{results: map[string]domain.SyncResult{
		"issues": {IntegrationID: "issues", Success: true, RecordsProcessed: 5, Duration: 1500 * time.Millisecond},
	}})()

	out, err := execute("sync", "issues", "--json")

	require.NoError(t, err)
	assert.NotContains(t, out, "Synchronising")
	assert.Contains(t, out, `"integration_id": "issues"`)
	assert.Contains(t, out, `"records_processed": 5`)
	assert.Contains(t, out, `"duration_ms": 1500`)
}

func TestSyncCmd_AllSucceed(t *testing.T) {
	defer setupFramework(&mockFramework{all: []domain.SyncResult{
		{IntegrationID: "a", Success: true, RecordsProcessed: 1},
		{IntegrationID: "b", Success: true},
	}})()

	out, err := execute("sync")

	require.NoError(t, err)
	assert.Contains(t, out, "Synchronising all integrations...")
	assert.Contains(t, out, "ok   a: 1 processed")
	assert.Contains(t, out, "ok   b: 0 processed")
	assert.Contains(t, out, "All integrations synchronised successfully.")
}

func TestSyncCmd_AllWithFailures(t *testing.T) {
	defer setupFramework(&mockFramework{all: []domain.SyncResult{
		{IntegrationID: "a", Success: true},
		{IntegrationID: "b", Errors: []string{"fetch failed"}},
		{IntegrationID: "c", Errors: []string{"push failed"}},
	}})()

	out, err := execute("sync")

	require.Error(t, err)
	assert.Contains(t, out, "FAIL b: fetch failed")
	assert.Contains(t, err.Error(), "2 of 3 integrations failed")
	assert.Contains(t, err.Error(), "b: fetch failed")
	assert.Contains(t, err.Error(), "c: push failed")
	assert.NotContains(t, out, "synchronised successfully")
}

func TestSyncCmd_AllNoIntegrations(t *testing.T) {
	defer setupFramework(&mockFramework{})()

	out, err := execute("sync")

	require.NoError(t, err)
	assert.Contains(t, out, "No enabled integrations.")
}

func TestSyncCmd_AllError(t *testing.T) {
	defer setupFramework(&mockFramework{err: errors.New("store unavailable")})()

	_, err := execute("sync")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed: store unavailable")
}
