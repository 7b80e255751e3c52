package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/config"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/match"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/pet"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/realtime"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/transport"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/db"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/logger"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/metrics"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Setup(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().Msg("Breeding service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.AutoMigrate {
		if err := db.ApplyMigrations(cfg.Postgres); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	transitions := metrics.NewCounter(registry, "breeding", "match_transitions_total", "Breeding match status changes by target status", "status")
	messagesSent := metrics.NewCounter(registry, "breeding", "chat_messages_sent_total", "Chat text messages stored")
	deliveries := metrics.NewCounter(registry, "breeding", "push_deliveries_total", "Realtime pushes by outcome", "outcome")

	var guard chat.SendGuard = chat.NewMemoryGuard()
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
		}
		guard = chat.NewRedisGuard(rdb, cfg.Chat.SendGuardTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis send guard")
	}

	hub := realtime.NewHub(
		realtime.WithBuffer(cfg.Chat.SubscriberBuffer),
		realtime.WithDeliveryObserver(func(outcome string) {
			deliveries.WithLabelValues(outcome).Inc()
		}),
	)
	defer hub.Close()

	petRepository := pet.NewRepository(dbConn.SQLX())
	petSvc := pet.NewService(petRepository)

	matchRepository := match.NewRepository(dbConn.Pool)
	matchSvc := match.NewService(matchRepository, petRepository, func(s match.Status) {
		transitions.WithLabelValues(s.String()).Inc()
	})

	chatRepository := chat.NewRepository(dbConn.Pool)
	chatSvc := chat.NewService(chatRepository, matchRepository, hub, guard,
		chat.WithSentObserver(func() { messagesSent.WithLabelValues().Inc() }))

	listener := realtime.NewPGListener(realtime.ListenerConfig{
		DSN:                  cfg.Postgres.DSN(),
		Channel:              cfg.Chat.NotifyChannel,
		MinReconnectInterval: cfg.Chat.MinReconnectInterval,
		MaxReconnectInterval: cfg.Chat.MaxReconnectInterval,
		PingInterval:         cfg.Chat.PingInterval,
	}, realtime.NewDispatcher(chatRepository, hub))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Chat listener stopped; realtime push disabled")
		}
	}()

	router := transport.NewRouter(transport.Dependencies{
		Pets:           petSvc,
		Matches:        matchSvc,
		Chat:           chatSvc,
		AllowedOrigins: cfg.Chat.AllowedOrigins,
		Registry:       registry,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.App.Port,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	// Shutdown does not wait for hijacked sockets; closing the hub ends their sessions.
	hub.Close()
	wg.Wait()
	log.Info().Msg("Server stopped")
}
