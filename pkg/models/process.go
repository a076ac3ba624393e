package models

// ProcessStatus is the lifecycle state of a sandboxed process.
type ProcessStatus string

const (
	ProcessStarting ProcessStatus = "starting"
	ProcessRunning  ProcessStatus = "running"
	ProcessExited   ProcessStatus = "exited"
	ProcessKilled   ProcessStatus = "killed"
)

// Live reports whether the status counts as a running instance for the
// single-instance invariant.
func (s ProcessStatus) Live() bool {
	return s == ProcessRunning || s == ProcessStarting
}

// ProcessInfo describes one process inside the sandbox. The sandbox owns the
// state; holders of a ProcessInfo never mutate it.
type ProcessInfo struct {
	ID       string        `json:"id"`
	PID      int32         `json:"pid"`
	Command  string        `json:"command"`
	Status   ProcessStatus `json:"status"`
	ExitCode *int          `json:"exitCode,omitempty"`
}

// ExecResult is the captured outcome of a bounded one-shot command. ExitCode
// is meaningful even when the command failed, distinguishing a non-zero exit
// from a spawn error.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// RestartResult is the POST /gateway/restart payload. The restart itself
// continues in the background after the response is written.
type RestartResult struct {
	Success           bool   `json:"success"`
	PreviousProcessID string `json:"previousProcessId,omitempty"`
	Message           string `json:"message"`
}
