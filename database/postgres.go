package database

import (
	"log"
	"time"

	"tourbook/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresDB is the global gorm handle, set when STORE_DRIVER=postgres.
var PostgresDB *gorm.DB

// InitPostgres opens the Postgres connection pool.
func InitPostgres() {
	logLevel := logger.Warn
	if !config.IsProduction() {
		logLevel = logger.Info
	}
	db, err := gorm.Open(postgres.Open(config.AppConfig.PostgresDSN), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get Postgres pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("failed to ping Postgres: %v", err)
	}
	PostgresDB = db
	log.Println("Connected to Postgres successfully!")
}
