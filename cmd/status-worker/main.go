// Command status-worker advances paid orders to active and completed as
// their time windows begin and end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-booking/internal/booking"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/jobs"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
)

func main() {
	log := logger.NewLogger("status-worker")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()

	var events booking.EventPublisher = kafka.Discard{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderStatus, log)
		defer producer.Close()
		events = producer
	}

	// The worker never resolves sessions or takes payments.
	service := booking.New(bunDB, nil, booking.Options{Events: events, Log: log})
	updater := jobs.NewStatusUpdater(service, nil, log)

	if _, err := updater.Run(ctx); err != nil {
		log.Error("CRON", fmt.Sprintf("Initial status pass failed: %v", err))
	}
	if err := updater.Start(cfg.Worker.Spec); err != nil {
		log.Fatal("CRON", err.Error())
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received")
	updater.Stop()
}
