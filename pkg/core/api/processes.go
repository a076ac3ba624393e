package api

import (
	"context"
	"net/http"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
)

// maxCommandDisplay bounds command strings in listings. Full argv may embed
// tokens or keys, so it never leaves the process untruncated.
const maxCommandDisplay = 80

func (s *AdminServer) getProcesses(w http.ResponseWriter, r *http.Request) {
	if !s.ensureGateway(w, r) {
		return
	}

	procs, err := s.processes.ListProcesses(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	display := make([]models.ProcessInfo, len(procs))

	for i, p := range procs {
		p.Command = truncateCommand(p.Command)
		display[i] = p
	}

	s.writeJSON(w, models.ProcessListResponse{
		Total:     len(display),
		Processes: display,
	})
}

func (s *AdminServer) killAllProcesses(w http.ResponseWriter, r *http.Request) {
	killedIDs, errs := s.supervisor.KillAll(r.Context())

	if killedIDs == nil {
		killedIDs = []string{}
	}

	if errs == nil {
		errs = []string{}
	}

	s.writeJSON(w, models.KillAllResponse{
		Killed:    len(killedIDs),
		KilledIDs: killedIDs,
		Errors:    errs,
	})
}

func (s *AdminServer) restartGateway(w http.ResponseWriter, r *http.Request) {
	previous, findErr := s.supervisor.FindExisting(r.Context())

	result := models.RestartResult{
		Success: true,
		Message: "gateway restart scheduled",
	}

	if findErr == nil {
		result.PreviousProcessID = previous.ID
	}

	// The kill/respawn continuation outlives this request; it runs on the
	// supervised registry with a fresh context.
	s.tasks.Go("gateway-restart", func(ctx context.Context) error {
		if res := s.supervisor.Restart(ctx); !res.Success {
			s.logger.Error().Str("message", res.Message).Msg("background gateway restart failed")
		}

		return nil
	})

	s.writeJSON(w, result)
}

func truncateCommand(command string) string {
	if len(command) <= maxCommandDisplay {
		return command
	}

	return command[:maxCommandDisplay] + "..."
}
