package api

import (
	"context"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
)

// GatewaySupervisor is the process-lifecycle surface the API delegates to.
type GatewaySupervisor interface {
	FindExisting(ctx context.Context) (models.ProcessInfo, error)
	EnsureRunning(ctx context.Context) (models.ProcessInfo, error)
	Restart(ctx context.Context) models.RestartResult
	KillAll(ctx context.Context) (killedIDs []string, errs []string)
}

// StorageService is the mount/sync surface the API delegates to.
type StorageService interface {
	SyncToRemote(ctx context.Context, creds models.R2Credentials) models.SyncResult
	Status(ctx context.Context, creds models.R2Credentials) models.StorageStatus
}

// ProcessLister enumerates sandbox processes for the introspection endpoint.
type ProcessLister interface {
	ListProcesses(ctx context.Context) ([]models.ProcessInfo, error)
}
