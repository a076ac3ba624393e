// Package models holds the wire and result types shared across the
// openclaw-deploy control plane.
package models

// R2Credentials identifies the durable bucket backing agent state. All three
// fields are required before any mount or sync is attempted; an incomplete
// set means persistence is disabled, not broken.
type R2Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	AccountID       string `json:"account_id"`
}

// Configured reports whether every required credential field is present.
func (c R2Credentials) Configured() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.AccountID != ""
}

// Missing returns the names of absent credential fields, for the storage
// status endpoint.
func (c R2Credentials) Missing() []string {
	var missing []string

	if c.AccessKeyID == "" {
		missing = append(missing, "access_key_id")
	}

	if c.SecretAccessKey == "" {
		missing = append(missing, "secret_access_key")
	}

	if c.AccountID == "" {
		missing = append(missing, "account_id")
	}

	return missing
}

// StageTag identifies one mirror stage of a sync run.
type StageTag string

const (
	StageConfigFailed    StageTag = "config_rsync_failed"
	StageWorkspaceFailed StageTag = "workspace_rsync_failed"
	StageSkillsFailed    StageTag = "skills_rsync_failed"
)

// ErrNotConfigured is the sync error reported when storage credentials are
// absent. It is part of the wire contract: the API layer maps it to 400
// where every other sync failure is a 500.
const ErrNotConfigured = "not configured"

// SyncResult reports the outcome of one sync run. Exactly one of
// (Success=true with LastSync) or (Success=false with Error) holds; a
// partial failure still carries LastSync when the remote marker was written.
type SyncResult struct {
	Success  bool   `json:"success"`
	LastSync string `json:"lastSync,omitempty"`
	Error    string `json:"error,omitempty"`
	Details  string `json:"details,omitempty"`
}

// Unconfigured reports whether the run failed for lack of credentials.
func (r SyncResult) Unconfigured() bool {
	return !r.Success && r.Error == ErrNotConfigured
}

// StorageStatus is the GET /storage payload.
type StorageStatus struct {
	Configured bool     `json:"configured"`
	Missing    []string `json:"missing,omitempty"`
	Mounted    bool     `json:"mounted"`
	LastSync   string   `json:"lastSync,omitempty"`
	Message    string   `json:"message"`
}
