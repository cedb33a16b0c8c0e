package app

import (
	"fmt"
	"os"
	"path/filepath"

	"cozychat/internal/blob"
	"cozychat/internal/chat"
	"cozychat/internal/client"
	"cozychat/internal/config"
	"cozychat/internal/database"
	"cozychat/internal/encryption"
	"cozychat/internal/server"
	"cozychat/internal/store"
)

// ServerApp is the application layer between the CLI and the chat server.
// It constructs all dependencies from config and manages their lifecycle on
// Close.
type ServerApp struct {
	cfg     *config.Config
	records chat.RecordStore
	server  *server.Server
	logFile *os.File
}

// NewServerApp creates a fully wired ServerApp from the given config and
// shared secret. The caller must call Close when done.
func NewServerApp(cfg *config.Config, secret string) (*ServerApp, error) {
	cipher, err := encryption.NewCipherFromConfig(cfg.Encryption, secret)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	records, err := database.NewRecordStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating record store: %w", err)
	}

	if m, ok := records.(interface{ CheckMigrations() error }); ok {
		if err := m.CheckMigrations(); err != nil {
			records.Close()
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	blobs, err := blob.NewStoreFromConfig(cfg.Blob)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	logger, logFile, err := newLogger(cfg.LogDir, "server", true)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	adapted := &slogAdapter{l: logger}
	fileStore := store.NewFileStore(records, blobs, adapted, chat.RealClock{}, chat.UUIDGenerator{})
	srv := server.NewServer(cfg.ServerName, cfg.ListenAddr, cipher, fileStore, adapted, chat.RealClock{})

	return &ServerApp{
		cfg:     cfg,
		records: records,
		server:  srv,
		logFile: logFile,
	}, nil
}

// Server returns the wired chat server.
func (a *ServerApp) Server() *server.Server { return a.server }

// Close shuts the server down and releases all resources.
func (a *ServerApp) Close() error {
	a.server.Shutdown()

	var firstErr error
	if err := a.records.Close(); err != nil {
		firstErr = fmt.Errorf("closing record store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// ClientApp wires a chat client from config. The client keeps its inbox and
// outbox under <base_dir>/client.
type ClientApp struct {
	client  *client.Client
	logFile *os.File
}

// NewClientApp creates a connected ClientApp. addr overrides the listen
// address from config when non-empty, so a client config can point at a
// remote server. The caller must call Close when done.
func NewClientApp(cfg *config.Config, addr, username, secret, baseDir string) (*ClientApp, error) {
	cipher, err := encryption.NewCipherFromConfig(cfg.Encryption, secret)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	if addr == "" {
		addr = cfg.ListenAddr
	}

	logger, logFile, err := newLogger(cfg.LogDir, "client", false)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	dataDir := filepath.Join(baseDir, "client")
	c := client.NewClient(addr, username, cfg.ServerName, cipher, dataDir, &slogAdapter{l: logger}, chat.RealClock{})
	if err := c.Connect(); err != nil {
		logFile.Close()
		return nil, err
	}

	return &ClientApp{client: c, logFile: logFile}, nil
}

// Client returns the connected chat client.
func (a *ClientApp) Client() *client.Client { return a.client }

// Close releases the client's resources.
func (a *ClientApp) Close() error {
	if a.logFile != nil {
		a.logFile.Close()
	}
	return nil
}
