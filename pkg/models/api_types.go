package models

// ErrorResponse is the uniform error body for the admin API. Unexpected
// failures are reduced to a message; stack traces never leave the process.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ApproveResponse is the POST /devices/{requestId}/approve payload.
type ApproveResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
}

// ApproveAllResponse is the POST /devices/approve-all payload.
type ApproveAllResponse struct {
	Approved []string         `json:"approved"`
	Failed   []ApproveOutcome `json:"failed"`
	Message  string           `json:"message"`
}

// RemoveResponse is the DELETE /devices/{deviceId} payload.
type RemoveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProcessListResponse is the GET /processes payload. Commands are truncated
// before they get here; full argv may embed secrets.
type ProcessListResponse struct {
	Total     int           `json:"total"`
	Processes []ProcessInfo `json:"processes"`
}

// KillAllResponse is the DELETE /processes/all payload.
type KillAllResponse struct {
	Killed    int      `json:"killed"`
	KilledIDs []string `json:"killedIds"`
	Errors    []string `json:"errors"`
}
