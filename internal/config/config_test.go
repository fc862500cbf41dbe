package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Booking.MaxPaymentAttempts)
	assert.Equal(t, 7, cfg.Booking.MaxHotelNights)
	assert.Equal(t, 30*time.Second, cfg.Booking.SettleLockTTL)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "booking.order.status", cfg.Kafka.Topics.OrderStatus)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PAYMENT_MAX_ATTEMPTS", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("SETTLE_LOCK_TTL_SECONDS", "not-a-number")
	t.Setenv("SESSION_BACKEND", "jwt")

	cfg := Load()

	assert.Equal(t, 3, cfg.Booking.MaxPaymentAttempts)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Booking.SettleLockTTL, "invalid values fall back to defaults")
	assert.Equal(t, "jwt", cfg.Session.Backend)
}
