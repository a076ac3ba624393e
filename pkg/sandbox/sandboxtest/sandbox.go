// Package sandboxtest provides a scripted Sandbox fake for unit tests.
package sandboxtest

import (
	"context"
	"sync"
	"time"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
)

// Fake implements sandbox.Sandbox with scripted responses and call
// recording. The zero value is usable: every operation succeeds with empty
// results.
type Fake struct {
	mu sync.Mutex

	Processes []models.ProcessInfo
	ListErr   error

	StartFunc func(command string) (models.ProcessInfo, error)
	ExecFunc  func(command string) (models.ExecResult, error)
	KillErr   error

	StartCalls []string
	ExecCalls  []string
	KillCalls  []string
}

func (f *Fake) ListProcesses(_ context.Context) ([]models.ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	out := make([]models.ProcessInfo, len(f.Processes))
	copy(out, f.Processes)

	return out, nil
}

func (f *Fake) StartProcess(_ context.Context, command string) (models.ProcessInfo, error) {
	f.mu.Lock()
	f.StartCalls = append(f.StartCalls, command)
	fn := f.StartFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(command)
	}

	return models.ProcessInfo{
		ID:      "fake-proc",
		PID:     4242,
		Command: command,
		Status:  models.ProcessRunning,
	}, nil
}

func (f *Fake) KillProcess(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.KillCalls = append(f.KillCalls, id)

	return f.KillErr
}

func (f *Fake) Exec(_ context.Context, command string, _ time.Duration) (models.ExecResult, error) {
	f.mu.Lock()
	f.ExecCalls = append(f.ExecCalls, command)
	fn := f.ExecFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(command)
	}

	return models.ExecResult{}, nil
}

// SetProcesses replaces the scripted process table.
func (f *Fake) SetProcesses(procs []models.ProcessInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Processes = procs
}
