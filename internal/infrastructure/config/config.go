// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MongoDB
	MongoURI string
	MongoDB  string

	// Postgres (catalog)
	PostgresURI string

	// Auth
	JWTSecret string

	// AMQP (optional; empty disables the notifier)
	AmqpURL      string
	AmqpExchange string

	// Push gateway (optional; empty disables the notifier)
	PushGatewayURL   string
	PushGatewayToken string

	// Policy knobs
	RescheduleLimit      int
	CancellationLockMins int
	GracePeriodMins      int
	TravelCharge         float64
	FirstBookingDevOTP   string

	// Push registry
	EventBufferSize int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		MongoURI: getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "leadcall"),

		PostgresURI: getEnv("POSTGRES_DSN", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AmqpURL:      getEnv("AMQP_URL", ""),
		AmqpExchange: getEnv("AMQP_EXCHANGE", "leadcall.events"),

		PushGatewayURL:   getEnv("PUSH_GATEWAY_URL", ""),
		PushGatewayToken: getEnv("PUSH_GATEWAY_TOKEN", ""),

		RescheduleLimit:      getEnvAsInt("RESCHEDULE_LIMIT", 2),
		CancellationLockMins: getEnvAsInt("CANCELLATION_LOCK_MINS", 60),
		GracePeriodMins:      getEnvAsInt("GRACE_PERIOD_MINS", 30),
		TravelCharge:         getEnvAsFloat("TRAVEL_CHARGE", 50),
		FirstBookingDevOTP:   getEnv("FIRST_BOOKING_DEV_OTP", "1234"),

		EventBufferSize: getEnvAsInt("EVENT_BUFFER_SIZE", 16),
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
