package models

// PairingState is the lifecycle state of a device pairing request as
// reported by the openclaw CLI. Device state is never persisted here; it is
// re-queried from the CLI on every request.
type PairingState string

const (
	PairingPending PairingState = "pending"
	PairingPaired  PairingState = "paired"
)

// Device is one entry from the CLI's pairing store.
type Device struct {
	RequestID    string       `json:"requestId,omitempty"`
	DeviceID     string       `json:"deviceId,omitempty"`
	PairingState PairingState `json:"pairingState,omitempty"`
}

// DeviceList is the parsed CLI device listing. RawOutput and Stderr are only
// populated when the CLI's stdout had no extractable JSON object, so the
// caller can surface the raw text for diagnosis instead of failing.
type DeviceList struct {
	Pending []Device `json:"pending"`
	Paired  []Device `json:"paired"`

	RawOutput string `json:"rawOutput,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
}

// ApproveOutcome records one device approval attempt during approve-all.
type ApproveOutcome struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error,omitempty"`
}
