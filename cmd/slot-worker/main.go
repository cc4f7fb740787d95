package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthsync/appointment-scheduling/internal/availability"
	"github.com/healthsync/appointment-scheduling/internal/config"
	"github.com/healthsync/appointment-scheduling/internal/db"
	"github.com/healthsync/appointment-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "slot-worker")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "slot-worker")
	log.Info().
		Str("env", cfg.Env).
		Int("horizon_days", cfg.HorizonDays).
		Dur("interval", cfg.GenerateInterval).
		Msg("slot-worker starting up")

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

	svc := availability.NewService(availability.NewPgRepository(pgPool), log)

	// Run once at startup, then on the daily tick. Generation is idempotent
	// per slot, so overlapping instances are safe.
	runOnce(rootCtx, svc, cfg.HorizonDays, log)

	ticker := time.NewTicker(cfg.GenerateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping slot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.HorizonDays, log)
		}
	}
}

func runOnce(ctx context.Context, svc *availability.Service, horizonDays int, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	created, err := svc.GenerateHorizon(runCtx, start, horizonDays)
	if err != nil {
		log.Error().Err(err).Msg("horizon generation error")
		return
	}
	log.Info().
		Int64("slots_created", created).
		Dur("took", time.Since(start)).
		Msg("horizon generation complete")
}
