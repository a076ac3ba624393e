package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/sandbox/sandboxtest"
)

// newTestSyncEngine wires an engine whose mount is already confirmed, so
// only the sync subprocess reaches the fake.
func newTestSyncEngine(t *testing.T, sb *sandboxtest.Fake) *SyncEngine {
	t.Helper()

	m, state := newTestMountManager(t, sb)
	state.confirm()

	return NewSyncEngine(sb, m, m.cfg, logger.NewTestLogger())
}

func TestSyncNotConfigured(t *testing.T) {
	sb := &sandboxtest.Fake{}
	e := newTestSyncEngine(t, sb)

	result := e.SyncToRemote(context.Background(), models.R2Credentials{AccessKeyID: "only-key"})

	assert.False(t, result.Success)
	assert.Equal(t, "not configured", result.Error)
	assert.True(t, result.Unconfigured())
	assert.Empty(t, result.LastSync)
	assert.Empty(t, sb.ExecCalls, "no subprocess before the credential gate")
}

func TestSyncMountFailed(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{ExitCode: 1, Stderr: "mount refused"}, nil
		},
	}

	m, _ := newTestMountManager(t, sb)
	m.partitions = partitionsReturning(nil, nil)
	e := NewSyncEngine(sb, m, m.cfg, logger.NewTestLogger())

	result := e.SyncToRemote(context.Background(), testCreds)

	assert.False(t, result.Success)
	assert.Equal(t, "mount failed", result.Error)
}

func TestSyncNoConfigFile(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{ExitCode: 1, Stderr: "no config file found"}, nil
		},
	}
	e := newTestSyncEngine(t, sb)

	result := e.SyncToRemote(context.Background(), testCreds)

	assert.False(t, result.Success)
	assert.Equal(t, "Sync aborted: no config file found", result.Error)
	assert.Empty(t, result.LastSync)
}

func TestSyncPartialFailure(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{
				Stdout: "sending incremental file list\n" +
					"SYNC_PARTIAL_FAILURE: workspace_rsync_failed\n" +
					"2026-08-24T10:15:00Z\n",
			}, nil
		},
	}
	e := newTestSyncEngine(t, sb)

	result := e.SyncToRemote(context.Background(), testCreds)

	assert.False(t, result.Success)
	assert.Equal(t, "Partial sync failure", result.Error)
	assert.Equal(t, "workspace_rsync_failed", result.Details)
	assert.Equal(t, "2026-08-24T10:15:00Z", result.LastSync, "partial backups still carry a timestamp")
}

func TestSyncPartialFailureMultipleStages(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{
				Stdout: "SYNC_PARTIAL_FAILURE: config_rsync_failed skills_rsync_failed\n" +
					"2026-08-24T10:15:00Z\n",
			}, nil
		},
	}
	e := newTestSyncEngine(t, sb)

	result := e.SyncToRemote(context.Background(), testCreds)

	assert.Equal(t, "config_rsync_failed, skills_rsync_failed", result.Details)
}

func TestSyncSuccess(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{
				Stdout: "sending incremental file list\n2026-08-24T10:15:00Z\n",
			}, nil
		},
	}
	e := newTestSyncEngine(t, sb)

	result := e.SyncToRemote(context.Background(), testCreds)

	assert.True(t, result.Success)
	assert.Equal(t, "2026-08-24T10:15:00Z", result.LastSync)
	assert.Empty(t, result.Error)

	require.Len(t, sb.ExecCalls, 1, "exactly one subprocess per sync")
	assert.Contains(t, sb.ExecCalls[0], "rsync")
}

func TestSyncTimestampMonotonic(t *testing.T) {
	stamps := []string{"2026-08-24T10:15:00Z", "2026-08-24T10:16:30Z"}
	call := 0

	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			out := models.ExecResult{Stdout: stamps[call] + "\n"}
			call++

			return out, nil
		},
	}
	e := newTestSyncEngine(t, sb)

	first := e.SyncToRemote(context.Background(), testCreds)
	second := e.SyncToRemote(context.Background(), testCreds)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}`, first.LastSync)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}`, second.LastSync)
	assert.LessOrEqual(t, first.LastSync, second.LastSync)
}

func TestSyncGarbageOutput(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{Stdout: "rsync: connection unexpectedly closed\n", Stderr: "broken pipe"}, nil
		},
	}
	e := newTestSyncEngine(t, sb)

	result := e.SyncToRemote(context.Background(), testCreds)

	assert.False(t, result.Success)
	assert.Equal(t, "sync failed", result.Error)
	assert.Contains(t, result.Details, "connection unexpectedly closed")
	assert.Contains(t, result.Details, "broken pipe")
}

func TestSyncAlreadyInProgress(t *testing.T) {
	sb := &sandboxtest.Fake{}
	e := newTestSyncEngine(t, sb)

	require.True(t, e.syncMu.TryLock())
	defer e.syncMu.Unlock()

	result := e.SyncToRemote(context.Background(), testCreds)

	assert.False(t, result.Success)
	assert.Equal(t, "sync already in progress", result.Error)
}

func TestStatusUnconfigured(t *testing.T) {
	sb := &sandboxtest.Fake{}
	e := newTestSyncEngine(t, sb)

	status := e.Status(context.Background(), models.R2Credentials{AccountID: "acct"})

	assert.False(t, status.Configured)
	assert.ElementsMatch(t, []string{"access_key_id", "secret_access_key"}, status.Missing)
	assert.False(t, status.Mounted)
}

func TestStatusMountedWithMarker(t *testing.T) {
	sb := &sandboxtest.Fake{}

	m, state := newTestMountManager(t, sb)
	state.confirm()
	e := NewSyncEngine(sb, m, m.cfg, logger.NewTestLogger())

	require.NoError(t, os.MkdirAll(m.MountPoint(), 0o755))
	marker := filepath.Join(m.MountPoint(), ".last-sync")
	require.NoError(t, os.WriteFile(marker, []byte("2026-08-24T09:00:00Z\n"), 0o644))

	status := e.Status(context.Background(), testCreds)

	assert.True(t, status.Configured)
	assert.True(t, status.Mounted)
	assert.Equal(t, "2026-08-24T09:00:00Z", status.LastSync)
	assert.Equal(t, "storage mounted", status.Message)
}

func TestStatusMountedNoMarker(t *testing.T) {
	sb := &sandboxtest.Fake{}

	m, state := newTestMountManager(t, sb)
	state.confirm()
	e := NewSyncEngine(sb, m, m.cfg, logger.NewTestLogger())

	status := e.Status(context.Background(), testCreds)

	assert.True(t, status.Mounted)
	assert.Empty(t, status.LastSync)
	assert.True(t, strings.Contains(status.Message, "no sync recorded"))
}
