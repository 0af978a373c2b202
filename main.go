package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FalconFreight/Access"
	"FalconFreight/Billing"
	"FalconFreight/Config"
	"FalconFreight/Controllers"
	"FalconFreight/CronJobs"
	"FalconFreight/FiberConfig"
	"FalconFreight/Fuel"
	"FalconFreight/Metrics"
	"FalconFreight/Models"
	"FalconFreight/Stores"
	"FalconFreight/Trips"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := Config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	db, err := Models.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	Metrics.RegisterDefault()
	store := Stores.New(db)
	if err := store.EnsureAdminExists(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	tripService := Trips.NewService(store, store, Trips.WithLogger(logger))
	fuelService := Fuel.NewService(store, store, Fuel.WithLogger(logger))
	sweeper := Billing.NewSweeper(store,
		Billing.WithLogger(logger),
		Billing.WithOverdueDays(cfg.OverdueDays),
	)

	sweepOpts := []CronJobs.Option{CronJobs.WithLogger(logger)}
	if cfg.RedisURL != "" {
		locker, err := CronJobs.NewRedisLocker(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		defer locker.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := locker.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, sweeps will retry the lock", "error", err)
		}
		cancel()
		sweepOpts = append(sweepOpts, CronJobs.WithLocker(locker))
	}
	billingSweeper := CronJobs.NewBillingSweeper(sweeper, cfg.SweepInterval, cfg.SweepOnStart, sweepOpts...)

	resolver := Access.NewJWTResolver(cfg.JWTSecret, cfg.TokenTTL, store)
	app := FiberConfig.New(FiberConfig.Handlers{
		Auth:    Controllers.NewAuthHandler(store, resolver),
		Trips:   Controllers.NewTripHandler(tripService),
		Fuel:    Controllers.NewFuelHandler(fuelService),
		Billing: Controllers.NewBillingHandler(billingSweeper, store),
	}, resolver, FiberConfig.Options{
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		Health:      store.Ping,
	})

	if err := billingSweeper.Start(ctx); err != nil {
		return fmt.Errorf("start billing sweeper: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(cfg.Addr)
	}()
	logger.Info("falcon freight started", "addr", cfg.Addr, "db", cfg.DBDriver)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := billingSweeper.Stop(shutdownCtx); err != nil {
		logger.Error("billing sweeper shutdown", "error", err)
	}
	return runErr
}
