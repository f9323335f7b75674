// Package cli wires configuration, storage and the service together and
// dispatches command-line subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mmynk/billbook/internal/config"
	"github.com/mmynk/billbook/internal/metrics"
	"github.com/mmynk/billbook/internal/middleware"
	"github.com/mmynk/billbook/internal/service"
	"github.com/mmynk/billbook/internal/snapshot"
	"github.com/mmynk/billbook/internal/storage/sqlite"
	"github.com/mmynk/billbook/pkg/logging"
)

// Run loads configuration, opens the database and executes one
// subcommand, writing its output to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
	logger := slog.Default()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Debug("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := service.New(ctx, store,
		service.WithLocation(loc),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
		service.WithBackupDir(snapshot.NewDir(cfg.BackupDir,
			snapshot.WithKeep(cfg.BackupKeep),
			snapshot.WithDirLogger(logging.Component(logger, "backups")),
		)),
	)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	defer svc.Close()

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	app := &App{
		Service:    svc,
		Out:        out,
		Location:   loc,
		Passphrase: cfg.BackupPassphrase,
	}
	return app.Execute(ctx, args)
}

// serveMetrics exposes reg on addr until the returned stop func is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Handler:      middleware.Logging(logging.Component(logger, "metrics"), mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Metrics server starting", "address", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
