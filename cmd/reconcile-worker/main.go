package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthsync/appointment-scheduling/internal/appointment"
	"github.com/healthsync/appointment-scheduling/internal/availability"
	"github.com/healthsync/appointment-scheduling/internal/config"
	"github.com/healthsync/appointment-scheduling/internal/db"
	"github.com/healthsync/appointment-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "reconcile-worker")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "reconcile-worker")
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.ReconcileInterval).
		Msg("reconcile-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	slots := availability.NewService(availability.NewPgRepository(pgPool), log)
	reconciler := appointment.NewReconciler(appointment.NewPgRepository(pgPool), slots, log)

	// Run once at startup
	runOnce(rootCtx, reconciler, log)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, reconciler, log)
		}
	}
}

func runOnce(ctx context.Context, reconciler *appointment.Reconciler, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	result, err := reconciler.Run(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("reconcile run error")
		return
	}
	log.Info().
		Int("slots_reserved", result.SlotsReserved).
		Int("slots_released", result.SlotsReleased).
		Dur("took", time.Since(start)).
		Msg("reconcile run complete")
}
