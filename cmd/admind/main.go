// admind is the openclaw-deploy control plane: it supervises the agent
// gateway, keeps agent state mounted and synced to R2, and exposes the admin
// API for device pairing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/config"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/core/api"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/pairing"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/sandbox"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/storage"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "admind: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/openclaw/admind.json", "Path to admind config file")
	flag.Parse()

	// A local .env is a convenience for dev setups; absence is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg ServiceConfig

	bootLog := logger.NewTestLogger()
	if err := config.NewConfig(bootLog).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return err
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	log, err := logger.NewComponentLogger("admind", logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	sb := sandbox.NewHostSandbox(log, cfg.ProcessLogDir)

	mounts := storage.NewMountManager(sb, storage.NewMountState(), cfg.Storage, log)
	engine := storage.NewSyncEngine(sb, mounts, cfg.Storage, log)

	gateway := supervisor.New(sb, cfg.Gateway, log)

	if cfg.Pairing.Token == "" {
		cfg.Pairing.Token = cfg.Gateway.Token
	}

	devices := pairing.NewCLIAdapter(sb, cfg.Pairing, log)

	server := api.NewAdminServer(
		api.WithAuthFunc(bearerAuth(cfg.AdminToken)),
		api.WithSupervisor(gateway),
		api.WithStorage(engine),
		api.WithDeviceCLI(devices),
		api.WithProcessLister(sb),
		api.WithCredentials(cfg.Credentials),
		api.WithLogger(log),
		api.WithTaskRegistry(api.NewTaskRegistry(log)),
	)

	if _, err := gateway.EnsureRunning(ctx); err != nil {
		// The API can still bring the gateway up on demand.
		log.Warn().Err(err).Msg("gateway not started at boot")
	}

	if cfg.Credentials.Configured() {
		if result := engine.SyncToRemote(ctx, cfg.Credentials); !result.Success {
			log.Warn().Str("error", result.Error).Msg("initial state sync failed")
		}
	}

	return server.Start(ctx, cfg.ListenAddr)
}
