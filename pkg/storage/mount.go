// Package storage mirrors the agent's working state to a mounted
// R2-compatible bucket: mount establishment and the staged sync engine.
package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/sandbox"
)

const (
	defaultBucket       = "openclaw-state"
	defaultMountPoint   = "/data"
	defaultPasswdFile   = "/tmp/.passwd-s3fs"
	defaultMountTimeout = 30 * time.Second
	defaultSyncTimeout  = 5 * time.Minute
)

// Config holds the storage layer settings. Zero values fall back to the
// container defaults.
type Config struct {
	Bucket       string        `json:"bucket"`
	MountPoint   string        `json:"mount_point"`
	PasswdFile   string        `json:"passwd_file"`
	MountTimeout time.Duration `json:"mount_timeout"`
	SyncTimeout  time.Duration `json:"sync_timeout"`
}

func (c *Config) applyDefaults() {
	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}

	if c.MountPoint == "" {
		c.MountPoint = defaultMountPoint
	}

	if c.PasswdFile == "" {
		c.PasswdFile = defaultPasswdFile
	}

	if c.MountTimeout == 0 {
		c.MountTimeout = defaultMountTimeout
	}

	if c.SyncTimeout == 0 {
		c.SyncTimeout = defaultSyncTimeout
	}
}

// MountState is the injectable once-per-warm-instance mount confirmation.
// Once confirmed, EnsureMounted performs no further I/O until Reset. Reset
// exists for test harnesses only.
type MountState struct {
	confirmed atomic.Bool
}

// NewMountState creates an unconfirmed mount state.
func NewMountState() *MountState { return &MountState{} }

// Confirmed reports whether the mount has been verified in this instance.
func (s *MountState) Confirmed() bool { return s.confirmed.Load() }

// Reset clears the confirmation. Test hook.
func (s *MountState) Reset() { s.confirmed.Store(false) }

func (s *MountState) confirm() { s.confirmed.Store(true) }

// partitionsFunc reads the host mount table. Swapped out in tests.
type partitionsFunc func(ctx context.Context, all bool) ([]disk.PartitionStat, error)

// MountManager establishes and memoizes the bucket mount. A failed mount is
// never an error to the caller: the agent runs without persistence.
type MountManager struct {
	sandbox    sandbox.Sandbox
	state      *MountState
	cfg        Config
	logger     logger.Logger
	partitions partitionsFunc
}

// NewMountManager creates a mount manager. The state object is owned by the
// caller so tests can construct independent instances.
func NewMountManager(sb sandbox.Sandbox, state *MountState, cfg Config, log logger.Logger) *MountManager {
	cfg.applyDefaults()

	return &MountManager{
		sandbox:    sb,
		state:      state,
		cfg:        cfg,
		logger:     log,
		partitions: disk.PartitionsWithContext,
	}
}

// MountPoint returns the fixed local path the bucket mounts onto.
func (m *MountManager) MountPoint() string { return m.cfg.MountPoint }

// EnsureMounted makes sure the bucket is mounted, returning whether it is.
// Missing credentials short-circuit to false with no side effects. Within one
// warm instance at most one mount-table probe happens per confirmation;
// concurrent callers may race into the probe, which is fine because the
// backend mount is idempotent.
func (m *MountManager) EnsureMounted(ctx context.Context, creds models.R2Credentials) bool {
	if !creds.Configured() {
		return false
	}

	if m.state.Confirmed() {
		return true
	}

	if m.isMounted(ctx) {
		m.logger.Debug().Str("mount_point", m.cfg.MountPoint).Msg("bucket already mounted")
		m.state.confirm()

		return true
	}

	if err := m.mount(ctx, creds); err != nil {
		m.logger.Warn().Err(err).Msg("mount command failed, re-checking mount table")

		// Some backends report a spurious error on a mount that in fact
		// succeeded or already existed concurrently.
		if m.isMounted(ctx) {
			m.state.confirm()
			return true
		}

		return false
	}

	m.state.confirm()

	return true
}

func (m *MountManager) isMounted(ctx context.Context) bool {
	parts, err := m.partitions(ctx, true)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to read mount table")
		return false
	}

	bucket := m.bucketName()

	for _, p := range parts {
		if p.Mountpoint != m.cfg.MountPoint {
			continue
		}

		if strings.Contains(p.Device, bucket) || strings.Contains(p.Fstype, "fuse") {
			return true
		}
	}

	return false
}

func (m *MountManager) mount(ctx context.Context, creds models.R2Credentials) error {
	if err := os.WriteFile(m.cfg.PasswdFile,
		[]byte(creds.AccessKeyID+":"+creds.SecretAccessKey+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	if err := os.MkdirAll(m.cfg.MountPoint, 0o755); err != nil {
		return fmt.Errorf("failed to create mount point: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", creds.AccountID)
	command := fmt.Sprintf(
		"s3fs %s %s -o url=%s -o passwd_file=%s -o use_path_request_style -o allow_other",
		m.bucketName(), m.cfg.MountPoint, endpoint, m.cfg.PasswdFile)

	result, err := m.sandbox.Exec(ctx, command, m.cfg.MountTimeout)
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("s3fs exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return nil
}

func (m *MountManager) bucketName() string {
	return m.cfg.Bucket
}
