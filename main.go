package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/api"
	bookingredis "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var bunDB *bun.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		bunDB, err = database.OpenPostgres(ctx, cfg.Database)
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}
	log.Info("DATABASE", "PostgreSQL connection successful")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	return bunDB, redisClient
}

func sessionResolver(cfg config.SessionConfig, redisClient *redis.Client, log *logger.Logger) auth.Resolver {
	switch cfg.Backend {
	case "jwt":
		if cfg.JWTSecret == "" {
			log.Fatal("CONFIG", "SESSION_JWT_SECRET must be set for the jwt session backend")
		}
		log.Info("AUTH", "Resolving sessions from signed tokens")
		return auth.NewJWTResolver(cfg.JWTSecret, cfg.TTL)
	case "redis":
		log.Info("AUTH", "Resolving sessions from Redis")
		return auth.NewRedisSessions(redisClient, cfg.TTL, log)
	default:
		log.Fatal("CONFIG", fmt.Sprintf("unknown SESSION_BACKEND %q", cfg.Backend))
		return nil
	}
}

func eventPublisher(cfg config.KafkaConfig, log *logger.Logger) (booking.EventPublisher, func()) {
	if !cfg.Enabled {
		log.Warn("KAFKA", "Kafka disabled, order status events are dropped")
		return kafka.Discard{}, func() {}
	}
	if err := kafka.EnsureTopicsExist(cfg.Brokers, []string{cfg.Topics.OrderStatus}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	producer := kafka.NewProducer(cfg.Brokers, cfg.Topics.OrderStatus, log)
	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %s", cfg.Topics.OrderStatus))
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func main() {
	log := logger.NewLogger("booking")
	defer log.Close()

	log.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	events, closeEvents := eventPublisher(cfg.Kafka, log)
	defer closeEvents()

	service := booking.New(bunDB, sessionResolver(cfg.Session, redisClient, log), booking.Options{
		MaxHotelNights:     cfg.Booking.MaxHotelNights,
		MaxPaymentAttempts: cfg.Booking.MaxPaymentAttempts,
		Hasher:             auth.NewHasher(),
		Lock:               bookingredis.NewSettleLock(redisClient, cfg.Booking.SettleLockTTL),
		Events:             events,
		Metrics:            bookingMetrics,
		Log:                log,
	})
	handler := api.NewHandler(service, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger(log))

	// --- Public Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler(registry))
	log.Info("ROUTER", "Health and metrics endpoints registered")

	// --- Protected Routes ---
	handler.RegisterRoutes(r)
	log.Info("ROUTER", "Booking routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Booking Service shutdown complete")
	}
}
