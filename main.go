package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"arena-server/arena"
	"arena-server/config"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := OpenDB(cfg.AnalyticsDSN)
	if err != nil {
		return fmt.Errorf("analytics db: %w", err)
	}
	defer db.Close()
	analytics := NewAnalytics(db, log.Named("analytics"))
	defer analytics.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := NewHub(log.Named("hub"))
	world := arena.New(arena.Options{
		MaxObstacles:          cfg.MaxObstacles,
		InitialObstacleGroups: cfg.InitialGroups,
		ObstacleSpawnInterval: cfg.ObstacleSpawnInterval,
		CoinSpawnInterval:     cfg.CoinSpawnInterval,
	}, hub, analytics, log.Named("arena"))
	hub.SetWorld(world)

	admin, err := NewAdmin(cfg.AdminPassword, hub, world, analytics, log.Named("admin"))
	if err != nil {
		return err
	}

	arenaDone := make(chan error, 1)
	go func() { arenaDone <- world.Run(ctx) }()

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: SetupRoutes(hub, admin, cfg.ClientDir, cfg.PublicURL, log.Named("http")),
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Addr), zap.String("client_dir", cfg.ClientDir))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stop()
		<-arenaDone
		return fmt.Errorf("listen: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	<-arenaDone
	return nil
}
