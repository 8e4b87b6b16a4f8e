package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/equitypulse/portfolio-service/internal/api"
	"github.com/equitypulse/portfolio-service/internal/cache"
	"github.com/equitypulse/portfolio-service/internal/config"
	"github.com/equitypulse/portfolio-service/internal/database"
	"github.com/equitypulse/portfolio-service/internal/jobs"
	"github.com/equitypulse/portfolio-service/internal/kafka"
	"github.com/equitypulse/portfolio-service/internal/marketdata"
	"github.com/equitypulse/portfolio-service/internal/portfolio"
	"github.com/equitypulse/portfolio-service/internal/scheduler"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	priceCache := cache.New(redisClient, time.Hour)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
	defer producer.Close()

	gateway := marketdata.NewClient(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.MarketData.RequestsPerMinute, log)
	engine := portfolio.NewService(db, db, db, gateway, log)

	refreshJob := jobs.NewPriceRefreshJob(db, gateway, db, priceCache, producer, cfg.Jobs.RefreshConcurrency, log)
	historyJob := jobs.NewHistoryUpdateJob(db, engine, db, producer, cfg.Jobs.RefreshConcurrency, log)

	sched := scheduler.New(log)
	sched.AddIntervalJob(cfg.Jobs.PriceRefreshInterval, cfg.Jobs.MisfireGrace, refreshJob)
	sched.AddIntervalJob(cfg.Jobs.HistoryUpdateInterval, cfg.Jobs.MisfireGrace, historyJob)
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.PriceTopic, cfg.Kafka.GroupID, db, log)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("kafka consumer stopped")
		}
	}()

	handler := api.NewHandler(db, engine, priceCache, sched, log)
	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: api.SetupRoutes(handler),
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

func runMigrations(connStr string) error {
	m, err := migrate.New("file://db/migrations", connStr)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
