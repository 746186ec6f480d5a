package database

import (
	"context"
	"fmt"
	"log"

	"service_finder/internal/domain/repository"
	"service_finder/internal/platform/config"
)

// OpenStore connects the backend selected by STORE_DRIVER, prepares its
// schema and returns the repositories with a matching close func.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := ConnectPostgres(ctx, cfg.DBConnStr)
		if err != nil {
			return nil, nil, err
		}
		if err := Migrate(db); err != nil {
			ClosePostgres(db)
			return nil, nil, err
		}
		return repository.NewPgStore(db), func() { ClosePostgres(db) }, nil

	case config.StoreDriverMongo:
		client, db, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			DisconnectMongo(client)
			return nil, nil, err
		}
		return repository.NewMongoStore(db), func() { DisconnectMongo(client) }, nil

	case config.StoreDriverMemory:
		log.Println("WARN: using in-memory store; data is lost on restart")
		return repository.NewMemoryStore().Store(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
