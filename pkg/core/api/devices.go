package api

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/pairing"
)

// validPathID guards every identifier lifted from the URL path before it can
// reach the CLI adapter. This is an injection boundary, not a usability
// check.
var validPathID = regexp.MustCompile(`^[\w-]+$`)

func (s *AdminServer) getDevices(w http.ResponseWriter, r *http.Request) {
	if !s.ensureGateway(w, r) {
		return
	}

	list, err := s.devices.ListDevices(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, list)
}

func (s *AdminServer) approveDevice(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]
	if requestID == "" || !validPathID.MatchString(requestID) {
		writeError(w, "missing or malformed request id", http.StatusBadRequest)
		return
	}

	if !s.ensureGateway(w, r) {
		return
	}

	message, err := s.devices.ApproveDevice(r.Context(), requestID)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, models.ApproveResponse{
		Success:   true,
		RequestID: requestID,
		Message:   message,
	})
}

func (s *AdminServer) approveAllDevices(w http.ResponseWriter, r *http.Request) {
	if !s.ensureGateway(w, r) {
		return
	}

	list, err := s.devices.ListDevices(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if list.RawOutput != "" {
		writeError(w, "could not parse device listing: "+list.RawOutput, http.StatusInternalServerError)
		return
	}

	resp := models.ApproveAllResponse{
		Approved: []string{},
		Failed:   []models.ApproveOutcome{},
	}

	// Sequential on purpose: concurrent approvals would overlap writes to
	// the same pairing store.
	for _, device := range list.Pending {
		if _, err := s.devices.ApproveDevice(r.Context(), device.RequestID); err != nil {
			resp.Failed = append(resp.Failed, models.ApproveOutcome{
				RequestID: device.RequestID,
				Error:     err.Error(),
			})

			continue
		}

		resp.Approved = append(resp.Approved, device.RequestID)
	}

	resp.Message = fmt.Sprintf("approved %d of %d pending devices",
		len(resp.Approved), len(list.Pending))

	s.writeJSON(w, resp)
}

func (s *AdminServer) removeDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]
	if !validPathID.MatchString(deviceID) {
		writeError(w, "invalid device id format", http.StatusBadRequest)
		return
	}

	if !s.ensureGateway(w, r) {
		return
	}

	outcome, message, err := s.devices.RemoveDevice(r.Context(), deviceID)

	switch outcome {
	case pairing.RemoveRemoved:
		s.writeJSON(w, models.RemoveResponse{Success: true, Message: message})
	case pairing.RemoveNotFound:
		writeError(w, "device not found", http.StatusNotFound)
	default:
		msg := "device removal failed"
		if err != nil {
			msg = err.Error()
		}

		writeError(w, msg, http.StatusInternalServerError)
	}
}
