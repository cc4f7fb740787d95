package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthsync/appointment-scheduling/internal/appointment"
	"github.com/healthsync/appointment-scheduling/internal/config"
	"github.com/healthsync/appointment-scheduling/internal/db"
	"github.com/healthsync/appointment-scheduling/internal/directory"
	"github.com/healthsync/appointment-scheduling/internal/logging"
	"github.com/healthsync/appointment-scheduling/internal/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "reminder-worker")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "reminder-worker")
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.ReminderInterval).
		Int("lead_days", cfg.ReminderLeadDays).
		Msg("reminder-worker starting up")

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

	var notifier notification.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notification.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Fatal().Err(err).Msg("kafka notifier error")
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, reminders are logged only")
		notifier = notification.NewLogNotifier(log)
	}

	dir := directory.NewPgDirectory(pgPool, cfg.DirectoryTimeout)
	dispatcher := appointment.NewReminderDispatcher(appointment.NewPgRepository(pgPool), dir, notifier, cfg.NotifyTimeout, log)

	// Run once at startup
	runOnce(rootCtx, dispatcher, cfg.ReminderLeadDays, log)

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, dispatcher, cfg.ReminderLeadDays, log)
		}
	}
}

func runOnce(ctx context.Context, dispatcher *appointment.ReminderDispatcher, leadDays int, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	target := time.Now().UTC().AddDate(0, 0, leadDays)

	start := time.Now()
	sent, err := dispatcher.Run(runCtx, target)
	if err != nil {
		log.Error().Err(err).Msg("reminder run error")
		return
	}
	log.Info().
		Time("target_date", target).
		Int("reminders_sent", sent).
		Dur("took", time.Since(start)).
		Msg("reminder run complete")
}
