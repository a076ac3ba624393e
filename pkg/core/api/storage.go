package api

import (
	"net/http"
)

func (s *AdminServer) getStorageStatus(w http.ResponseWriter, r *http.Request) {
	if !s.ensureGateway(w, r) {
		return
	}

	s.writeJSON(w, s.storage.Status(r.Context(), s.creds))
}

func (s *AdminServer) syncStorage(w http.ResponseWriter, r *http.Request) {
	if !s.ensureGateway(w, r) {
		return
	}

	result := s.storage.SyncToRemote(r.Context(), s.creds)

	status := http.StatusOK

	if !result.Success {
		status = http.StatusInternalServerError
		if result.Unconfigured() {
			status = http.StatusBadRequest
		}
	}

	s.writeJSONStatus(w, result, status)
}
