package blob

import (
	"context"
	"fmt"

	"cozychat/internal/chat"
	"cozychat/internal/config"
)

// NewStoreFromConfig creates a BlobStore implementation based on the blob config type.
func NewStoreFromConfig(cfg config.BlobConfig) (chat.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem", "":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem blob store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot)
	case "s3":
		return NewS3Store(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}
