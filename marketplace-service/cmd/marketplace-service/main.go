package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/cart"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/config"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/handler"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/petcare-microservices/marketplace-service/internal/transport"
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
	log.Info().Msg("Marketplace service starting...")

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

	cartOps := metrics.NewCounter(registry, "marketplace", "cart_operations_total", "Cart mutations by operation", "op")
	checkouts := metrics.NewCounter(registry, "marketplace", "checkouts_total", "Checkout attempts by result", "result")

	carts := cart.NewStore(cfg.Cart.SessionTTL, cart.WithObserver(func(op cart.Op) {
		cartOps.WithLabelValues(string(op)).Inc()
	}))
	go carts.Run(ctx, cfg.Cart.SweepInterval)

	orderRepository := order.NewRepository(dbConn.Pool)
	orderSvc := order.NewService(orderRepository)

	router := transport.NewRouter(transport.Dependencies{
		Orders: orderSvc,
		Carts:  carts,
		Sessions: handler.Sessions{
			CookieName: cfg.Cart.CookieName,
			TTL:        cfg.Cart.SessionTTL,
			Secure:     cfg.Cart.CookieSecure,
		},
		Checkouts: checkouts,
		Registry:  registry,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
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
	log.Info().Msg("Server stopped")
}
