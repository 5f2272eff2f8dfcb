package database

import (
	"context"
	"fmt"

	"tourbook/config"
	"tourbook/database/repository"
	memoryRepo "tourbook/database/repository/memory"
	mongoRepo "tourbook/database/repository/mongodb"
	postgresRepo "tourbook/database/repository/postgres"
)

// OpenStore connects the backend named by STORE_DRIVER and makes sure its
// indexes or tables exist.
func OpenStore(ctx context.Context) (repository.Store, error) {
	var store repository.Store
	switch config.AppConfig.StoreDriver {
	case "mongo":
		InitDB()
		store = mongoRepo.NewMongoStore(MongoDatabase())
	case "postgres":
		InitPostgres()
		store = postgresRepo.NewPostgresStore(PostgresDB)
	case "memory":
		store = memoryRepo.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.AppConfig.StoreDriver)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("prepare %s store: %w", config.AppConfig.StoreDriver, err)
	}
	return store, nil
}

// Close releases whichever connection OpenStore made.
func Close(ctx context.Context) {
	if MongoClient != nil {
		_ = MongoClient.Disconnect(ctx)
	}
	if PostgresDB != nil {
		if sqlDB, err := PostgresDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
