package testutil

import (
	"testing"

	"cozychat/internal/blob"
	"cozychat/internal/chat"
	"cozychat/internal/database"
	"cozychat/internal/store"
)

// NewTestRecordStore creates an in-memory SQLite record store with the
// schema applied. The store is closed automatically when the test completes.
func NewTestRecordStore(t *testing.T) chat.RecordStore {
	t.Helper()

	s, err := database.NewSQLiteRecordStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open record store: %v", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		t.Fatalf("failed to migrate record store: %v", err)
	}

	t.Cleanup(func() { s.Close() })
	return s
}

// NewTestFileStore wires a FileStore over in-memory backends with a fixed
// clock and sequential IDs.
func NewTestFileStore(t *testing.T) *store.FileStore {
	t.Helper()

	return store.NewFileStore(
		NewTestRecordStore(t),
		blob.NewMemoryStore(),
		chat.NewNopLogger(),
		FixedClock(),
		NewStubIDGenerator(),
	)
}
