package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"secure-print-drop/internal/db"
	"secure-print-drop/internal/server"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		// Logger is not up yet, so print and bail.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := server.NewLogger()
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	dbConn, err := server.OpenDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = dbConn.Close() }()

	log.Info("running migrations")
	if err := db.RunMigrations(dbConn); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	blobs, err := server.NewMinioBlobStore(cfg)
	if err != nil {
		log.Fatal("object storage init failed", zap.Error(err))
	}

	store := server.NewPGStore(dbConn)
	srv := server.New(cfg, log, dbConn, store, blobs)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting", zap.String("addr", cfg.Addr), zap.String("version", cfg.Version))
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
		log.Info("shutdown complete")
	case err := <-errCh:
		if err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}
}
