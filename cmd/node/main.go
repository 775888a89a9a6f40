package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shadowtrace/shadowtrace-node/internal/config"
	"github.com/shadowtrace/shadowtrace-node/internal/db"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk"
	"go.uber.org/zap"
)

var Version = "dev" // Overridden by release build script

func init() {
	logger := zap.Must(zap.NewProduction())
	if config.Get().LogZapMode == "development" {
		logger = zap.Must(zap.NewDevelopment())
	}
	zap.ReplaceGlobals(logger)
}

func main() {
	zap.L().Info("Starting shadowtrace-node...",
		zap.String("Version", Version))

	// Main context: canceled when we want to stop normal operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqlitePath := config.Get().SqlitePath
	if sqlitePath == "" {
		sqlitePath = "./db/sqlite/sqlite"
	}
	sqlite, err := db.OpenSqlite(sqlitePath)
	if err != nil {
		zap.L().Fatal("Failed to open SQLite", zap.Error(err))
	}

	badgerPath := config.Get().BadgerPath
	if badgerPath == "" {
		badgerPath = "./db/badger/badger"
	}
	kv, err := db.OpenBadger(badgerPath)
	if err != nil {
		zap.L().Fatal("Failed to open BadgerDB", zap.Error(err))
	}

	// Start ingestion: listener + risk scorer + graph recompute worker
	if _, err := risk.StartPipelineAsync(sqlite, kv, ctx); err != nil {
		zap.L().Error("Failed to start ingestion pipeline", zap.Error(err))
		cancel() // Cancel main context if critical startup failed
	}

	// Catch up to two signals: first for graceful, second to force
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	doneCh := make(chan struct{})

	go func() {
		<-sigCh
		zap.L().Info("Received shutdown signal, initiating graceful shutdown...")

		// 1. Cancel main context, telling background tasks to stop
		cancel()

		// 2. Close the KV store
		if err := kv.Close(); err != nil {
			zap.L().Warn("Error closing BadgerDB", zap.Error(err))
		}

		// 3. Close the relational store
		if err := sqlite.Close(); err != nil {
			zap.L().Warn("Error closing DB", zap.Error(err))
		}

		// 4. Signal that cleanup is done
		close(doneCh)

		// If a second signal arrives, force an immediate exit
		<-sigCh
		zap.L().Error("Received second signal, forcing shutdown")
		os.Exit(1)
	}()

	// Wait for either normal context cancellation or graceful shutdown completion
	select {
	case <-ctx.Done():
	case <-doneCh:
	}

	zap.L().Info("Shutdown complete")
	_ = zap.L().Sync()
}
