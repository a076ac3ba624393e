package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
)

var (
	errProcessNotFound = errors.New("process not found")
	errEmptyCommand    = errors.New("empty command")
)

// pidIDPrefix marks ids for processes that were discovered by enumeration
// rather than spawned through this sandbox instance.
const pidIDPrefix = "pid-"

// spawned tracks a process started by this warm instance so its exit code
// survives in the listing after the process is gone from the host table.
type spawned struct {
	id       string
	pid      int32
	command  string
	status   models.ProcessStatus
	exitCode *int
	cmd      *exec.Cmd
}

// HostSandbox implements Sandbox on the local container using gopsutil for
// enumeration and os/exec for spawning.
type HostSandbox struct {
	mu     sync.Mutex
	spawns map[string]*spawned
	logDir string
	logger logger.Logger
}

// NewHostSandbox creates a sandbox rooted at the local host. Spawned process
// output is appended to files under logDir (default /tmp).
func NewHostSandbox(log logger.Logger, logDir string) *HostSandbox {
	if logDir == "" {
		logDir = os.TempDir()
	}

	return &HostSandbox{
		spawns: make(map[string]*spawned),
		logDir: logDir,
		logger: log,
	}
}

// spawnView is an immutable copy of a spawned process's mutable fields,
// taken under the lock. The reaper goroutine keeps writing to the live
// struct, so the overlay loop must never touch it directly.
type spawnView struct {
	id       string
	pid      int32
	command  string
	status   models.ProcessStatus
	exitCode *int
}

// ListProcesses enumerates host processes, overlaying status and exit codes
// for processes spawned by this instance.
func (h *HostSandbox) ListProcesses(ctx context.Context) ([]models.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", err)
	}

	h.mu.Lock()
	byPID := make(map[int32]spawnView, len(h.spawns))

	for _, s := range h.spawns {
		byPID[s.pid] = spawnView{
			id:       s.id,
			pid:      s.pid,
			command:  s.command,
			status:   s.status,
			exitCode: s.exitCode,
		}
	}
	h.mu.Unlock()

	infos := make([]models.ProcessInfo, 0, len(procs))
	seen := make(map[int32]bool, len(procs))

	for _, p := range procs {
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || cmdline == "" {
			continue
		}

		seen[p.Pid] = true

		info := models.ProcessInfo{
			ID:      pidIDPrefix + strconv.Itoa(int(p.Pid)),
			PID:     p.Pid,
			Command: cmdline,
			Status:  statusOf(ctx, p),
		}

		if s, ok := byPID[p.Pid]; ok {
			info.ID = s.id
			info.ExitCode = s.exitCode

			if s.status == models.ProcessKilled {
				info.Status = models.ProcessKilled
			}
		}

		infos = append(infos, info)
	}

	// Spawned processes that already left the host table still report their
	// terminal state.
	for _, s := range byPID {
		if !seen[s.pid] && !s.status.Live() {
			infos = append(infos, models.ProcessInfo{
				ID:       s.id,
				PID:      s.pid,
				Command:  s.command,
				Status:   s.status,
				ExitCode: s.exitCode,
			})
		}
	}

	return infos, nil
}

// StartProcess spawns command detached in its own session so it survives the
// request that created it.
func (h *HostSandbox) StartProcess(_ context.Context, command string) (models.ProcessInfo, error) {
	if strings.TrimSpace(command) == "" {
		return models.ProcessInfo{}, errEmptyCommand
	}

	id := uuid.NewString()

	logPath := fmt.Sprintf("%s/openclaw-proc-%s.log", h.logDir, id)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return models.ProcessInfo{}, fmt.Errorf("failed to open process log: %w", err)
	}

	// Deliberately not CommandContext: the spawned process must outlive the
	// request context.
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return models.ProcessInfo{}, fmt.Errorf("failed to start process: %w", err)
	}

	s := &spawned{
		id:      id,
		pid:     int32(cmd.Process.Pid),
		command: command,
		status:  models.ProcessRunning,
		cmd:     cmd,
	}

	h.mu.Lock()
	h.spawns[id] = s
	h.mu.Unlock()

	// Reap in the background so the handle never dangles as a zombie.
	go func() {
		defer func() { _ = logFile.Close() }()

		err := cmd.Wait()
		code := 0

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}

		h.mu.Lock()
		defer h.mu.Unlock()

		if s.status != models.ProcessKilled {
			s.status = models.ProcessExited
		}

		s.exitCode = &code
	}()

	h.logger.Info().Str("process_id", id).Int32("pid", s.pid).Msg("started sandbox process")

	return models.ProcessInfo{
		ID:      id,
		PID:     s.pid,
		Command: command,
		Status:  models.ProcessRunning,
	}, nil
}

// KillProcess terminates a process: SIGTERM first, SIGKILL if that fails.
func (h *HostSandbox) KillProcess(ctx context.Context, id string) error {
	pid, err := h.resolvePID(id)
	if err != nil {
		return err
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return fmt.Errorf("%w: pid %d", errProcessNotFound, pid)
	}

	if err := p.TerminateWithContext(ctx); err != nil {
		if killErr := p.KillWithContext(ctx); killErr != nil {
			return fmt.Errorf("failed to kill pid %d: %w", pid, killErr)
		}
	}

	h.mu.Lock()
	for _, s := range h.spawns {
		if s.pid == pid {
			s.status = models.ProcessKilled
		}
	}
	h.mu.Unlock()

	return nil
}

// Exec runs command under sh -c with a hard timeout. Non-zero exits land in
// the result; only spawn and timeout failures surface as errors.
func (h *HostSandbox) Exec(ctx context.Context, command string, timeout time.Duration) (models.ExecResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := models.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if execCtx.Err() != nil {
			return result, fmt.Errorf("command timed out after %s: %w", timeout, execCtx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		return result, fmt.Errorf("failed to run command: %w", err)
	}

	return result, nil
}

func (h *HostSandbox) resolvePID(id string) (int32, error) {
	h.mu.Lock()
	s, ok := h.spawns[id]
	h.mu.Unlock()

	if ok {
		return s.pid, nil
	}

	raw, found := strings.CutPrefix(id, pidIDPrefix)
	if !found {
		return 0, fmt.Errorf("%w: %s", errProcessNotFound, id)
	}

	pid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errProcessNotFound, id)
	}

	return int32(pid), nil
}

func statusOf(ctx context.Context, p *process.Process) models.ProcessStatus {
	statuses, err := p.StatusWithContext(ctx)
	if err != nil {
		return models.ProcessRunning
	}

	for _, s := range statuses {
		if s == process.Zombie {
			return models.ProcessExited
		}
	}

	return models.ProcessRunning
}
