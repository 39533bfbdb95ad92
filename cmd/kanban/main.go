package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kanban/internal/backup"
	"kanban/internal/board"
	"kanban/internal/config"
	"kanban/internal/server"
	"kanban/internal/storage"
	"kanban/internal/storage/memory"
	"kanban/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger := cfg.NewLogger(os.Stdout)
	if cfg.File != "" {
		logger.Info("configuration loaded", "file", cfg.File)
	}

	prefs, err := openPrefs(cfg, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer prefs.Close()

	ctx := context.Background()
	store, err := board.Open(ctx, prefs, board.Options{
		Logger:         logger,
		SeedSampleData: cfg.SeedSampleData,
	})
	if err != nil {
		logger.Error("unable to load board", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts := server.Options{
		StaticDir:      cfg.StaticDir,
		AllowedOrigins: cfg.AllowedOrigins,
	}

	var scheduler *backup.Scheduler
	if cfg.BackupDir != "" {
		scheduler, err = backup.NewScheduler(backup.Config{
			Store:    store,
			Dir:      cfg.BackupDir,
			Schedule: cfg.BackupSchedule,
			Keep:     cfg.BackupKeep,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("unable to configure backups", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if path, err := scheduler.RunOnce(ctx); err != nil {
			logger.Warn("startup backup failed", slog.String("error", err.Error()))
		} else {
			logger.Info("startup backup written", "path", path)
		}
		scheduler.Start()
		defer scheduler.Stop()
		opts.Backups = scheduler
	}

	srv := server.New(store, logger, opts)

	// Event streams run until their request context ends, so they are tied to
	// a context that is cancelled before shutdown waits on open connections.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     srv.Engine(),
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopStreams()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func openPrefs(cfg *config.Config, logger *slog.Logger) (storage.Prefs, error) {
	if cfg.DBPath == config.MemoryDB {
		logger.Warn("using in-memory storage; board is lost on exit")
		return memory.New(nil), nil
	}
	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
