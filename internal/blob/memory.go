package blob

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"cozychat/internal/chat"
)

// MemoryStore is an in-memory implementation of chat.BlobStore, useful for
// testing. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ chat.BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores size bytes from r under key, replacing any existing object.
func (m *MemoryStore) Put(key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

// Get writes the object's content to w.
func (m *MemoryStore) Get(key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("object %q: %w", key, chat.ErrFileNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// Stat returns the object's info.
func (m *MemoryStore) Stat(key string) (*chat.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", key, chat.ErrFileNotFound)
	}
	return &chat.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

// List returns the objects under prefix, sorted by key.
func (m *MemoryStore) List(prefix string) ([]chat.ObjectInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []chat.ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, chat.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}
