// Package api provides the admin HTTP server for the openclaw-deploy
// control plane.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	srHTTP "github.com/rightsgod-hub/openclaw-deploy/pkg/http"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/pairing"
)

// AuthFunc is the external authorization pre-check gating every admin
// route. It returns nil when the request may proceed. Token verification
// internals live outside this service.
type AuthFunc func(r *http.Request) error

// AdminServer exposes the admin API over a gorilla/mux router.
type AdminServer struct {
	router     *mux.Router
	httpServer *http.Server

	authFunc   AuthFunc
	supervisor GatewaySupervisor
	storage    StorageService
	devices    pairing.DeviceCLI
	processes  ProcessLister
	creds      models.R2Credentials
	tasks      *TaskRegistry
	logger     logger.Logger
}

// NewAdminServer creates the server with the given options and wires its
// routes.
func NewAdminServer(options ...func(*AdminServer)) *AdminServer {
	s := &AdminServer{
		router: mux.NewRouter(),
		logger: logger.NewTestLogger(),
	}

	for _, o := range options {
		o(s)
	}

	if s.tasks == nil {
		s.tasks = NewTaskRegistry(s.logger)
	}

	s.setupRoutes()

	return s
}

// WithAuthFunc sets the authorization pre-check.
func WithAuthFunc(f AuthFunc) func(*AdminServer) {
	return func(s *AdminServer) { s.authFunc = f }
}

// WithSupervisor sets the gateway supervisor.
func WithSupervisor(sup GatewaySupervisor) func(*AdminServer) {
	return func(s *AdminServer) { s.supervisor = sup }
}

// WithStorage sets the storage service.
func WithStorage(st StorageService) func(*AdminServer) {
	return func(s *AdminServer) { s.storage = st }
}

// WithDeviceCLI sets the pairing CLI adapter.
func WithDeviceCLI(cli pairing.DeviceCLI) func(*AdminServer) {
	return func(s *AdminServer) { s.devices = cli }
}

// WithProcessLister sets the process introspection source.
func WithProcessLister(pl ProcessLister) func(*AdminServer) {
	return func(s *AdminServer) { s.processes = pl }
}

// WithCredentials sets the storage credentials handlers pass down.
func WithCredentials(creds models.R2Credentials) func(*AdminServer) {
	return func(s *AdminServer) { s.creds = creds }
}

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) func(*AdminServer) {
	return func(s *AdminServer) { s.logger = log }
}

// WithTaskRegistry sets the background task registry.
func WithTaskRegistry(tasks *TaskRegistry) func(*AdminServer) {
	return func(s *AdminServer) { s.tasks = tasks }
}

// Router exposes the underlying router for tests.
func (s *AdminServer) Router() *mux.Router { return s.router }

func (s *AdminServer) setupRoutes() {
	s.router.Use(srHTTP.CommonMiddleware(s.logger))

	// Liveness is deliberately outside the auth boundary.
	s.router.HandleFunc("/healthz", s.getHealth).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/").Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/devices", s.getDevices).Methods(http.MethodGet)
	protected.HandleFunc("/devices/approve-all", s.approveAllDevices).Methods(http.MethodPost)
	protected.HandleFunc("/devices/{requestId}/approve", s.approveDevice).Methods(http.MethodPost)
	protected.HandleFunc("/devices/{deviceId}", s.removeDevice).Methods(http.MethodDelete)
	protected.HandleFunc("/storage", s.getStorageStatus).Methods(http.MethodGet)
	protected.HandleFunc("/storage/sync", s.syncStorage).Methods(http.MethodPost)
	protected.HandleFunc("/gateway/restart", s.restartGateway).Methods(http.MethodPost)
	protected.HandleFunc("/processes", s.getProcesses).Methods(http.MethodGet)
	protected.HandleFunc("/processes/all", s.killAllProcesses).Methods(http.MethodDelete)
}

// authMiddleware runs the external authorization pre-check before any admin
// handler.
func (s *AdminServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authFunc == nil {
			writeError(w, "authorization not configured", http.StatusUnauthorized)
			return
		}

		if err := s.authFunc(r); err != nil {
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *AdminServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// ensureGateway makes sure the agent gateway is live before a handler acts.
// Returns false after writing the error response.
func (s *AdminServer) ensureGateway(w http.ResponseWriter, r *http.Request) bool {
	if _, err := s.supervisor.EnsureRunning(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("gateway unavailable")
		writeError(w, "gateway unavailable: "+err.Error(), http.StatusInternalServerError)

		return false
	}

	return true
}

// Start runs the HTTP server until ctx is cancelled, then drains in-flight
// requests and background tasks.
func (s *AdminServer) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info().Str("addr", addr).Msg("admin API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)

	s.tasks.Wait()

	return err
}

func (s *AdminServer) writeJSON(w http.ResponseWriter, data interface{}) {
	s.writeJSONStatus(w, data, http.StatusOK)
}

func (s *AdminServer) writeJSONStatus(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
