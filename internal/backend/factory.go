package backend

import (
	"fmt"

	"ledger/internal/storage"
	"ledger/internal/store"
	"ledger/internal/store/memory"
)

// New opens the backend described by cfg.
func New(cfg Config) (store.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil
	case Memory:
		dir := cfg.DataDirectory
		if dir == "" {
			dir = "data"
		}
		return memory.NewFromFiles(dir), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
