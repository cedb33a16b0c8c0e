package database

import (
	"fmt"
	"os"
	"path/filepath"

	"cozychat/internal/chat"
	"cozychat/internal/config"
)

// NewRecordStoreFromConfig creates a RecordStore based on the database config type.
// The schema is migrated to the latest version on open.
func NewRecordStoreFromConfig(cfg config.DatabaseConfig) (chat.RecordStore, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, "cozychat.db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	s, err := NewSQLiteRecordStore(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}
