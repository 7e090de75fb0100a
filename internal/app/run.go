package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"workspace-search/internal/common/logging"
	"workspace-search/internal/config"
)

// shutdownGrace is how long in-flight requests and queued searches get to
// finish after a termination signal.
const shutdownGrace = 30 * time.Second

// Run is the process entry point: load environment, validate config,
// start the app and block until a termination signal.
func Run() error {
	// A missing .env is fine; the environment may be set by the deployment
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	application, err := New(cfg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received signal", logging.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return application.Shutdown(ctx)
}
