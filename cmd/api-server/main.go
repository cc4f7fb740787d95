package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthsync/appointment-scheduling/internal/api"
	"github.com/healthsync/appointment-scheduling/internal/appointment"
	"github.com/healthsync/appointment-scheduling/internal/availability"
	"github.com/healthsync/appointment-scheduling/internal/config"
	"github.com/healthsync/appointment-scheduling/internal/db"
	"github.com/healthsync/appointment-scheduling/internal/directory"
	"github.com/healthsync/appointment-scheduling/internal/logging"
	"github.com/healthsync/appointment-scheduling/internal/notification"
	redisclient "github.com/healthsync/appointment-scheduling/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "api-server")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "api-server")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	var notifier notification.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kn, err := notification.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Fatal().Err(err).Msg("kafka notifier error")
		}
		defer func() {
			if err := kn.Close(); err != nil {
				log.Error().Err(err).Msg("error closing kafka writer")
			}
		}()
		notifier = kn
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka notifier ready")
	} else {
		notifier = notification.NewLogNotifier(log)
		log.Warn().Msg("KAFKA_BROKERS not set, notifications are logged only")
	}

	availabilitySvc := availability.NewService(availability.NewPgRepository(pgPool), log)
	dir := directory.NewPgDirectory(pgPool, cfg.DirectoryTimeout)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	coordinator := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		availabilitySvc,
		dir,
		notifier,
		locker,
		cfg.NotifyTimeout,
		log,
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: coordinator,
		Availability: availabilitySvc,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       log,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("api-server stopped")
}
