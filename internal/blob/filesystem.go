package blob

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cozychat/internal/chat"
)

// FileSystemStore is a filesystem-based implementation of chat.BlobStore.
// Keys map directly onto paths under the root, producing the on-disk layout
// the file areas expose:
//
//	<root>/
//	  shared/            (public files)
//	  inbox/<username>/  (private files addressed to <username>)
//	  outbox/            (staged uploads)
type FileSystemStore struct {
	root string
}

var _ chat.BlobStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a filesystem store rooted at the given path.
// The standard areas are created up front.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	for _, dir := range []string{"shared", "inbox", "outbox"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &FileSystemStore{root: root}, nil
}

// Root returns the store's root directory.
func (s *FileSystemStore) Root() string { return s.root }

// Put stores size bytes from r under key, replacing any existing object.
func (s *FileSystemStore) Put(key string, r io.Reader, size int64) error {
	destPath, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	return writeFile(destPath, r, size)
}

// Get writes the object's content to w.
func (s *FileSystemStore) Get(key string, w io.Writer) error {
	srcPath, err := s.pathFor(key)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %q: %w", key, chat.ErrFileNotFound)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// Stat returns the object's info.
func (s *FileSystemStore) Stat(key string) (*chat.ObjectInfo, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %q: %w", key, chat.ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("object %q: %w", key, chat.ErrFileNotFound)
	}
	return &chat.ObjectInfo{Key: key, Size: info.Size()}, nil
}

// List returns the objects under prefix, sorted by key.
func (s *FileSystemStore) List(prefix string) ([]chat.ObjectInfo, error) {
	dir, err := s.pathFor(prefix)
	if err != nil {
		return nil, err
	}

	var objects []chat.ObjectInfo
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, chat.ObjectInfo{
			Key:  filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing objects under %q: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// pathFor resolves a key to a path under root, refusing keys that would
// escape it.
func (s *FileSystemStore) pathFor(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
