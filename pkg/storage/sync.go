package storage

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/sandbox"
)

const (
	errMountFailed    = "mount failed"
	errNoConfigFile   = "Sync aborted: no config file found"
	errPartialSync    = "Partial sync failure"
	errSyncFailed     = "sync failed"
	errSyncInProgress = "sync already in progress"
)

// lastSyncPattern accepts the date-prefixed marker content. Anything else on
// the final line means the marker write was not observed.
var lastSyncPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// SyncEngine mirrors local working directories to the mounted bucket through
// exactly one bounded subprocess per sync.
type SyncEngine struct {
	sandbox sandbox.Sandbox
	mounts  *MountManager
	cfg     Config
	logger  logger.Logger

	// Guards against two syncs racing rsync --delete on the same remote
	// prefix. A second caller gets a structured failure, not a queue.
	syncMu sync.Mutex
}

// NewSyncEngine creates a sync engine on top of the mount manager.
func NewSyncEngine(sb sandbox.Sandbox, mounts *MountManager, cfg Config, log logger.Logger) *SyncEngine {
	cfg.applyDefaults()

	return &SyncEngine{
		sandbox: sb,
		mounts:  mounts,
		cfg:     cfg,
		logger:  log,
	}
}

// SyncToRemote runs one full sync. All failure modes come back as structured
// results; nothing escapes as an error.
func (e *SyncEngine) SyncToRemote(ctx context.Context, creds models.R2Credentials) models.SyncResult {
	if !creds.Configured() {
		return models.SyncResult{Success: false, Error: models.ErrNotConfigured}
	}

	if !e.mounts.EnsureMounted(ctx, creds) {
		return models.SyncResult{Success: false, Error: errMountFailed}
	}

	if !e.syncMu.TryLock() {
		return models.SyncResult{Success: false, Error: errSyncInProgress}
	}
	defer e.syncMu.Unlock()

	script := newSyncScript(e.mounts.MountPoint()).Build()

	result, err := e.sandbox.Exec(ctx, script, e.cfg.SyncTimeout)
	if err != nil {
		e.logger.Error().Err(err).Msg("sync subprocess failed")

		return models.SyncResult{
			Success: false,
			Error:   errSyncFailed,
			Details: err.Error(),
		}
	}

	return e.interpret(result)
}

// interpret maps the subprocess exit code and trailing output lines onto a
// SyncResult. Only the captured output is consulted, never a mid-stream read.
func (e *SyncEngine) interpret(result models.ExecResult) models.SyncResult {
	if result.ExitCode == exitNoConfig {
		return models.SyncResult{Success: false, Error: errNoConfigFile}
	}

	lines := nonEmptyLines(result.Stdout)

	var tags []string

	for _, line := range lines {
		if rest, ok := strings.CutPrefix(line, partialFailureMarker); ok {
			tags = strings.Fields(rest)
		}
	}

	lastSync := ""
	if len(lines) > 0 {
		if last := lines[len(lines)-1]; lastSyncPattern.MatchString(last) {
			lastSync = last
		}
	}

	if len(tags) > 0 {
		e.logger.Warn().Strs("failed_stages", tags).Msg("partial sync failure")

		return models.SyncResult{
			Success:  false,
			LastSync: lastSync,
			Error:    errPartialSync,
			Details:  strings.Join(tags, ", "),
		}
	}

	if lastSync != "" {
		e.logger.Info().Str("last_sync", lastSync).Msg("sync completed")

		return models.SyncResult{Success: true, LastSync: lastSync}
	}

	return models.SyncResult{
		Success: false,
		Error:   errSyncFailed,
		Details: strings.TrimSpace(result.Stdout + "\n" + result.Stderr),
	}
}

// Status reports storage configuration and freshness without running a sync.
// When the bucket is mounted the marker file is read directly.
func (e *SyncEngine) Status(ctx context.Context, creds models.R2Credentials) models.StorageStatus {
	status := models.StorageStatus{
		Configured: creds.Configured(),
		Missing:    creds.Missing(),
	}

	if !status.Configured {
		status.Message = "persistence disabled: storage credentials not configured"
		return status
	}

	status.Mounted = e.mounts.EnsureMounted(ctx, creds)
	if !status.Mounted {
		status.Message = "storage configured but bucket mount failed"
		return status
	}

	marker := filepath.Join(e.mounts.MountPoint(), ".last-sync")
	if data, err := os.ReadFile(marker); err == nil {
		if line := strings.TrimSpace(string(data)); lastSyncPattern.MatchString(line) {
			status.LastSync = line
		}
	}

	if status.LastSync == "" {
		status.Message = "storage mounted, no sync recorded yet"
	} else {
		status.Message = "storage mounted"
	}

	return status
}

func nonEmptyLines(s string) []string {
	var lines []string

	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	return lines
}
