package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"voxtrace/internal/archive"
	"voxtrace/internal/config"
	"voxtrace/internal/daemon"
	"voxtrace/internal/ipc"
	"voxtrace/internal/logging"
	"voxtrace/internal/notifications"
	"voxtrace/internal/remote"
	"voxtrace/internal/tracker"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the voxtrace daemon runtime loop and blocks until the
// process receives SIGINT or SIGTERM, or a client requests shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := filepath.Join(cfg.Paths.LogDir, "voxtrace.log")
	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "voxtrace.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	history, err := archive.Open(cfg)
	if err != nil {
		logger.Error("open history archive", logging.Error(err))
		return err
	}
	defer history.Close()

	tr := tracker.New(tracker.Options{
		Config:   cfg,
		Remote:   remote.NewClient(cfg, logger),
		Archive:  history,
		Notifier: notifications.NewService(cfg),
		Logger:   logger,
	})

	d, err := daemon.New(cfg, tr, history, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, ipc.ServerOptions{
		SocketPath: cfg.SocketPath(),
		Daemon:     d,
		Logger:     logger,
		OnShutdown: cancel,
	})
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	logger.Info("voxtrace daemon running",
		logging.String("socket", cfg.SocketPath()),
		logging.Int("pid", os.Getpid()),
	)

	<-signalCtx.Done()
	logger.Info("voxtrace daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
