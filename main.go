// prismflow/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"prismflow/api"
	"prismflow/config"
	"prismflow/task"
	"prismflow/upload"
)

// Run runs the server until a termination signal arrives or an actor fails.
func Run(ctx context.Context, args []string, stderr io.Writer) error {
	app := kingpin.New("prismflow", "Mock video processing server with simulated task progress.")
	configFile := app.Flag("config", "Path to a YAML configuration file.").Short('c').String()
	debug := app.Flag("debug", "Enable debug logging.").Bool()
	if _, err := app.Parse(args[1:]); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// 1. Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg, *debug, stderr)
	if err != nil {
		return err
	}

	// 2. Initialize dependencies
	registry := upload.NewRegistry()
	storage, err := upload.NewStorage(cfg, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	taskManager, err := task.NewManager(cfg, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize task manager: %w", err)
	}

	// 3. Set up router and server
	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(taskManager, storage, cfg, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logger.Info("Termination signal received, shutting down gracefully")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("Server starting on port %s", cfg.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen: %w", err)
				}
				return nil
			},
			func(_ error) {
				// The server has 5 seconds to finish the requests it is currently handling.
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server forced to shutdown: %v", err)
				}
			},
		)
	}

	// Task reaper and progress drivers.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return taskManager.Run(ctx) },
			func(_ error) { cancel() },
		)
	}

	// Upload sweeper.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return storage.Run(ctx) },
			func(_ error) { cancel() },
		)
	}

	err = g.Run()
	logger.Info("Server exiting")
	return err
}

func newLogger(cfg *config.Config, debug bool, out io.Writer) (*logrus.Entry, error) {
	l := logrus.New()
	l.Out = out

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if debug {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logrus.NewEntry(l).WithField("app", "prismflow"), nil
}

func main() {
	if err := Run(context.Background(), os.Args, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
