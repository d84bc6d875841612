package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Server
	Port string

	// Database (shared with the marketplace backend)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Operator auth
	JWTSecret string

	// Staleness thresholds, hours. Each process type has its own clock basis.
	OrderStaleHours       int
	DeliveryStaleHours    int
	TransactionStaleHours int
	ActivityStaleHours    int

	// Hours a notification may go unanswered before escalation is allowed.
	EscalationHours int

	// Default retention window for resolved ledger rows, days.
	CleanupRetentionDays int

	// Periodic full scan; 0 disables the background sweeper.
	SweepIntervalMinutes int
}

func Load() *Config {
	return &Config{
		Port:                  getEnv("PORT", "8098"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", ""),
		DBName:                getEnv("DB_NAME", "pazarly_db"),
		DBSSLMode:             getEnv("DB_SSLMODE", "disable"),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		OrderStaleHours:       getEnvInt("ORDER_STALE_HOURS", 24),
		DeliveryStaleHours:    getEnvInt("DELIVERY_STALE_HOURS", 6),
		TransactionStaleHours: getEnvInt("TRANSACTION_STALE_HOURS", 2),
		ActivityStaleHours:    getEnvInt("ACTIVITY_STALE_HOURS", 12),
		EscalationHours:       getEnvInt("ESCALATION_HOURS", 24),
		CleanupRetentionDays:  getEnvInt("CLEANUP_RETENTION_DAYS", 30),
		SweepIntervalMinutes:  getEnvInt("SWEEP_INTERVAL_MINUTES", 0),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
