package app

import (
	"path/filepath"

	"cozychat/internal/config"
)

// newTestConfig builds a config rooted under base with fast backends.
func newTestConfig(base string) *config.Config {
	cfg := config.NewConfig("Server", base)
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.LogDir = filepath.Join(base, "log")
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	return cfg
}
