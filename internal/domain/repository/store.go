package repository

import (
	"database/sql"

	"go.mongodb.org/mongo-driver/mongo"
)

// Store bundles the repositories of one storage backend.
type Store struct {
	Users      UserRepository
	Categories CategoryRepository
	Providers  ProviderRepository
}

func NewPgStore(db *sql.DB) *Store {
	return &Store{
		Users:      NewPgUserRepository(db),
		Categories: NewPgCategoryRepository(db),
		Providers:  NewPgProviderRepository(db),
	}
}

func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:      NewMongoUserRepository(db),
		Categories: NewMongoCategoryRepository(db),
		Providers:  NewMongoProviderRepository(db),
	}
}

func (s *MemoryStore) Store() *Store {
	return &Store{
		Users:      s.Users(),
		Categories: s.Categories(),
		Providers:  s.Providers(),
	}
}
