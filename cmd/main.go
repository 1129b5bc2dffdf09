package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sousvide_simulator/internal/config"
	"sousvide_simulator/internal/handlers"
	"sousvide_simulator/internal/logger"
	"sousvide_simulator/internal/repository"
	"sousvide_simulator/internal/server"
	"sousvide_simulator/internal/service"
)

const defaultSimTick = 1 * time.Second

func main() {
	// load config.yml plus SIM_* env overrides
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)

	// open DB for the message log
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)
	services := service.NewService(repos, cfg, log)
	apiHandler := handlers.NewHandler(services, cfg, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the physics tick loop
	go services.Simulator.Run(ctx, defaultSimTick)

	// start the three listeners
	deviceSrv := runHTTPServer(cfg.DevicePort, apiHandler.InitDeviceRoutes(), "device-protocol", log)
	identitySrv := runHTTPServer(cfg.IdentityPort, apiHandler.InitIdentityRoutes(), "identity-mock", log)
	controlSrv := runHTTPServer(cfg.ControlPort, apiHandler.InitControlRoutes(), "control-api", log)

	log.Infow("simulator started",
		"device_port", cfg.DevicePort,
		"identity_port", cfg.IdentityPort,
		"control_port", cfg.ControlPort,
		"time_scale", cfg.TimeScale,
	)

	// graceful shutdown
	waitForShutdown(cancel, log, deviceSrv, identitySrv, controlSrv)
}

// runHTTPServer runs one HTTP server in a separate goroutine.
func runHTTPServer(port string, handler http.Handler, name string, log *logger.Logger) *server.Server {
	srv := &server.Server{}
	go func() {
		if err := srv.Run(port, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "server", name, "err", err)
		}
	}()
	return srv
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, log *logger.Logger, servers ...*server.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down simulator...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorw("server forced to shutdown", "err", err)
		}
	}
}
