package app

import (
	"context"
	"fmt"

	"project-service/internal/config"
	"project-service/internal/repository"
	"project-service/internal/repository/postgres"
	"project-service/internal/repository/sqlite"
)

const errUnsupportedStoreFmt = "unsupported identity store: %s"

// Store is an opened identity store. DB is nil for the sqlite backend.
type Store struct {
	Identities repository.IdentityRepository
	DB         *postgres.DB
}

// OpenStore connects the identity store selected by cfg.Store.Backend.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := postgres.New(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		return &Store{Identities: postgres.NewIdentityRepository(db), DB: db}, nil
	case config.StoreSQLite:
		repo, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{Identities: repo}, nil
	default:
		return nil, fmt.Errorf(errUnsupportedStoreFmt, cfg.Store.Backend)
	}
}

// Close releases the underlying connection pool or database file.
func (s *Store) Close() error {
	return s.Identities.Close()
}
