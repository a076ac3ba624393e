// Package supervisor owns the lifecycle of the single OpenClaw gateway
// process inside the sandbox. It is the only component that spawns gateway
// processes, which is what keeps the single-instance invariant true.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/sandbox"
)

const (
	defaultGatewayCommand = "openclaw-gateway"
	defaultGatewayPort    = 18789
	defaultGracePeriod    = 2 * time.Second
)

var errNoLiveProcess = errors.New("no live gateway process")

// Config describes the gateway invocation.
type Config struct {
	Command     string        `json:"command"`
	Port        int           `json:"port"`
	Bind        string        `json:"bind"`
	Token       string        `json:"token"`
	GracePeriod time.Duration `json:"grace_period"`

	// LockFiles are removed before a fresh spawn: leftovers from a crashed
	// run would make the gateway refuse to start.
	LockFiles []string `json:"lock_files"`
}

func (c *Config) applyDefaults() {
	if c.Command == "" {
		c.Command = defaultGatewayCommand
	}

	if c.Port == 0 {
		c.Port = defaultGatewayPort
	}

	if c.Bind == "" {
		c.Bind = "lan"
	}

	if c.GracePeriod == 0 {
		c.GracePeriod = defaultGracePeriod
	}

	if c.LockFiles == nil {
		home, _ := os.UserHomeDir()
		c.LockFiles = []string{
			home + "/.openclaw/gateway.lock",
			os.TempDir() + "/openclaw-gateway.pid",
		}
	}
}

// Supervisor finds, starts and restarts the gateway process.
type Supervisor struct {
	sandbox sandbox.Sandbox
	cfg     Config
	logger  logger.Logger
}

// New creates a supervisor for the configured gateway invocation.
func New(sb sandbox.Sandbox, cfg Config, log logger.Logger) *Supervisor {
	cfg.applyDefaults()

	return &Supervisor{
		sandbox: sb,
		cfg:     cfg,
		logger:  log,
	}
}

// spawnCommand renders the full gateway command line.
func (s *Supervisor) spawnCommand() string {
	cmd := fmt.Sprintf("%s --port %d --bind %s", s.cfg.Command, s.cfg.Port, s.cfg.Bind)

	if s.cfg.Token != "" {
		cmd += " --token " + s.cfg.Token
	}

	return cmd
}

// matches reports whether a process command line is a gateway invocation.
func (s *Supervisor) matches(command string) bool {
	return strings.Contains(command, s.cfg.Command)
}

// FindExisting returns the live gateway process, if any. The first match
// wins; there is never more than one by construction.
func (s *Supervisor) FindExisting(ctx context.Context) (models.ProcessInfo, error) {
	procs, err := s.sandbox.ListProcesses(ctx)
	if err != nil {
		return models.ProcessInfo{}, fmt.Errorf("failed to list processes: %w", err)
	}

	for _, p := range procs {
		if s.matches(p.Command) && p.Status.Live() {
			return p, nil
		}
	}

	return models.ProcessInfo{}, errNoLiveProcess
}

// EnsureRunning returns the live gateway process, spawning one if none
// exists. Idempotent within and across requests.
func (s *Supervisor) EnsureRunning(ctx context.Context) (models.ProcessInfo, error) {
	if existing, err := s.FindExisting(ctx); err == nil {
		return existing, nil
	}

	s.clearStaleLocks()

	proc, err := s.sandbox.StartProcess(ctx, s.spawnCommand())
	if err != nil {
		return models.ProcessInfo{}, fmt.Errorf("failed to spawn gateway: %w", err)
	}

	s.logger.Info().Str("process_id", proc.ID).Int32("pid", proc.PID).Msg("gateway started")

	return proc, nil
}

// Restart kills the current gateway (best-effort) and spawns a replacement.
// Callers run the continuation in the background; the method itself blocks
// through the grace period.
func (s *Supervisor) Restart(ctx context.Context) models.RestartResult {
	result := models.RestartResult{Success: true, Message: "gateway restarted"}

	existing, err := s.FindExisting(ctx)
	if err == nil {
		result.PreviousProcessID = existing.ID

		if killErr := s.sandbox.KillProcess(ctx, existing.ID); killErr != nil {
			// Best-effort: a stuck old process must not block the new one.
			s.logger.Warn().Err(killErr).Str("process_id", existing.ID).
				Msg("failed to kill gateway before restart")
		}

		select {
		case <-time.After(s.cfg.GracePeriod):
		case <-ctx.Done():
		}
	}

	s.clearStaleLocks()

	if _, err := s.sandbox.StartProcess(ctx, s.spawnCommand()); err != nil {
		s.logger.Error().Err(err).Msg("failed to spawn replacement gateway")

		result.Success = false
		result.Message = "restart failed: " + err.Error()
	}

	return result
}

// KillAll terminates every gateway process, collecting per-process outcomes.
func (s *Supervisor) KillAll(ctx context.Context) (killedIDs []string, errs []string) {
	procs, err := s.sandbox.ListProcesses(ctx)
	if err != nil {
		return nil, []string{err.Error()}
	}

	for _, p := range procs {
		if !s.matches(p.Command) || !p.Status.Live() {
			continue
		}

		if err := s.sandbox.KillProcess(ctx, p.ID); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.ID, err))
			continue
		}

		killedIDs = append(killedIDs, p.ID)
	}

	return killedIDs, errs
}

func (s *Supervisor) clearStaleLocks() {
	for _, path := range s.cfg.LockFiles {
		if err := os.Remove(path); err == nil {
			s.logger.Debug().Str("path", path).Msg("removed stale gateway lock")
		}
	}
}
