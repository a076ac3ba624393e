// Package sandbox abstracts the container the agent runs in: process
// enumeration and lifecycle, plus bounded one-shot command execution.
package sandbox

import (
	"context"
	"time"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
)

// Sandbox is the host container boundary. The supervisor and the storage
// layer only ever reach the host through this interface.
type Sandbox interface {
	// ListProcesses enumerates all processes visible inside the sandbox.
	ListProcesses(ctx context.Context) ([]models.ProcessInfo, error)

	// StartProcess spawns a long-lived detached process from a shell
	// command line and returns its handle.
	StartProcess(ctx context.Context, command string) (models.ProcessInfo, error)

	// KillProcess terminates a process by handle id or pid id.
	KillProcess(ctx context.Context, id string) error

	// Exec runs a shell command to completion, bounded by timeout, and
	// captures its output. A non-zero exit is reported through the result,
	// not through the error.
	Exec(ctx context.Context, command string, timeout time.Duration) (models.ExecResult, error)
}
