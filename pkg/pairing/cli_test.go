package pairing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/sandbox/sandboxtest"
)

func newTestAdapter(t *testing.T, sb *sandboxtest.Fake) *CLIAdapter {
	t.Helper()

	cfg := Config{
		Token:     "tok123",
		StateDirs: []string{t.TempDir()},
	}

	return NewCLIAdapter(sb, cfg, logger.NewTestLogger())
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "plain object",
			input: `{"pending":[]}`,
			want:  `{"pending":[]}`,
			ok:    true,
		},
		{
			name:  "log lines around object",
			input: "[info] connecting to gateway\n{\"pending\":[],\"paired\":[]}\n[info] done",
			want:  `{"pending":[],"paired":[]}`,
			ok:    true,
		},
		{
			name:  "braces inside strings",
			input: `{"paired":[{"deviceId":"d-1","note":"shape {weird}"}]}`,
			want:  `{"paired":[{"deviceId":"d-1","note":"shape {weird}"}]}`,
			ok:    true,
		},
		{
			name:  "escaped quote inside string",
			input: `{"deviceId":"a\"b}"}`,
			want:  `{"deviceId":"a\"b}"}`,
			ok:    true,
		},
		{
			name:  "no object",
			input: "error: gateway unreachable",
			ok:    false,
		},
		{
			name:  "unbalanced",
			input: `{"pending":[`,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListDevices(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{
				Stdout: "[warn] config migration pending\n" +
					`{"pending":[{"requestId":"req-1","pairingState":"pending"}],` +
					`"paired":[{"deviceId":"dev-1","pairingState":"paired"}]}` + "\n",
			}, nil
		},
	}
	a := newTestAdapter(t, sb)

	list, err := a.ListDevices(context.Background())
	require.NoError(t, err)

	require.Len(t, list.Pending, 1)
	assert.Equal(t, "req-1", list.Pending[0].RequestID)
	require.Len(t, list.Paired, 1)
	assert.Equal(t, "dev-1", list.Paired[0].DeviceID)
	assert.Empty(t, list.RawOutput)

	require.Len(t, sb.ExecCalls, 1)
	assert.Contains(t, sb.ExecCalls[0], "devices list --json")
	assert.Contains(t, sb.ExecCalls[0], "--url ws://127.0.0.1:18789")
	assert.Contains(t, sb.ExecCalls[0], "--token tok123")
}

func TestListDevicesNoJSON(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{
				Stdout: "gateway not responding",
				Stderr: "dial tcp: connection refused",
			}, nil
		},
	}
	a := newTestAdapter(t, sb)

	list, err := a.ListDevices(context.Background())
	require.NoError(t, err, "parse failure surfaces raw text, not an error")
	assert.Equal(t, "gateway not responding", list.RawOutput)
	assert.Equal(t, "dial tcp: connection refused", list.Stderr)
	assert.Empty(t, list.Pending)
}

func TestApproveDevice(t *testing.T) {
	tests := []struct {
		name    string
		result  models.ExecResult
		wantErr bool
	}{
		{"zero exit", models.ExecResult{ExitCode: 0, Stdout: "ok"}, false},
		{"nonzero exit but approved text", models.ExecResult{ExitCode: 3, Stdout: "Device Approved!"}, false},
		{"nonzero exit with success text", models.ExecResult{ExitCode: 1, Stdout: "Success"}, false},
		{"hard failure", models.ExecResult{ExitCode: 1, Stdout: "unknown request id"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := &sandboxtest.Fake{
				ExecFunc: func(string) (models.ExecResult, error) { return tt.result, nil },
			}
			a := newTestAdapter(t, sb)

			msg, err := a.ApproveDevice(context.Background(), "req-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown request id", "raw CLI text attached for diagnosis")

				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestApproveDeviceRejectsBadID(t *testing.T) {
	sb := &sandboxtest.Fake{}
	a := newTestAdapter(t, sb)

	_, err := a.ApproveDevice(context.Background(), "req-1; rm -rf /")
	require.ErrorIs(t, err, errInvalidDeviceID)
	assert.Empty(t, sb.ExecCalls, "nothing reaches the shell")
}

func TestRemoveDeviceViaCLI(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{ExitCode: 0, Stdout: "removed device dev-1"}, nil
		},
	}
	a := newTestAdapter(t, sb)

	outcome, msg, err := a.RemoveDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, RemoveRemoved, outcome)
	assert.Contains(t, msg, "removed")
}

func TestRemoveDeviceFallbackArrayShape(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{ExitCode: 1, Stdout: "remove not supported"}, nil
		},
	}
	a := newTestAdapter(t, sb)

	dir := a.cfg.StateDirs[0]
	path := filepath.Join(dir, "devices.json")
	state := `[{"deviceId":"dev-1","name":"phone"},{"deviceId":"dev-2","name":"laptop"}]`
	require.NoError(t, os.WriteFile(path, []byte(state), 0o600))

	outcome, _, err := a.RemoveDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, RemoveRemoved, outcome)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var remaining []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &remaining))
	require.Len(t, remaining, 1)
	assert.Equal(t, "dev-2", remaining[0]["deviceId"])
}

func TestRemoveDeviceFallbackKeyedShape(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{ExitCode: 1}, nil
		},
	}
	a := newTestAdapter(t, sb)

	dir := a.cfg.StateDirs[0]
	path := filepath.Join(dir, "paired.json")
	state := `{"dev-1":{"name":"phone"},"dev-2":{"name":"laptop"}}`
	require.NoError(t, os.WriteFile(path, []byte(state), 0o600))

	outcome, _, err := a.RemoveDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, RemoveRemoved, outcome)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var remaining map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &remaining))
	assert.NotContains(t, remaining, "dev-1")
	assert.Contains(t, remaining, "dev-2")
}

func TestRemoveDeviceNotFound(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{ExitCode: 1}, nil
		},
	}
	a := newTestAdapter(t, sb)

	// State file exists but holds a different device.
	dir := a.cfg.StateDirs[0]
	state := `[{"deviceId":"dev-9"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devices.json"), []byte(state), 0o600))

	outcome, _, err := a.RemoveDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, RemoveNotFound, outcome)
}

func TestRemoveDeviceUntouchedWhenNoMatch(t *testing.T) {
	sb := &sandboxtest.Fake{
		ExecFunc: func(string) (models.ExecResult, error) {
			return models.ExecResult{ExitCode: 1}, nil
		},
	}
	a := newTestAdapter(t, sb)

	// The file mentions the id in an unrelated value position only; the
	// structured match must not fire and the file must not be rewritten.
	dir := a.cfg.StateDirs[0]
	path := filepath.Join(dir, "notes.json")
	state := `[{"deviceId":"dev-9","comment":"dev-1 asked for pairing"}]`
	require.NoError(t, os.WriteFile(path, []byte(state), 0o600))

	outcome, _, err := a.RemoveDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, RemoveNotFound, outcome)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, state, string(data), "no rewrite without a structural match")
}

func TestRemoveDeviceRejectsBadID(t *testing.T) {
	sb := &sandboxtest.Fake{}
	a := newTestAdapter(t, sb)

	outcome, _, err := a.RemoveDevice(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, errInvalidDeviceID)
	assert.Equal(t, RemoveError, outcome)
	assert.Empty(t, sb.ExecCalls)
}
