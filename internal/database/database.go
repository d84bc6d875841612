package database

import (
	"fmt"
	"log/slog"

	"github.com/pazarly/reaper/internal/config"
	"github.com/pazarly/reaper/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	// TranslateError so a duplicate-key conflict on the ledger's partial
	// unique index surfaces as gorm.ErrDuplicatedKey.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	slog.Info("Database connected", "host", cfg.DBHost, "db", cfg.DBName)
	return nil
}

// Migrate creates the tables this service owns. The workflow tables
// (orders, delivery_tasks, transactions) belong to the marketplace backend
// and are read-only here.
func Migrate() error {
	return DB.AutoMigrate(
		&models.AbandonedProcess{},
		&models.ActivityLog{},
	)
}
