package chat

import "io"

// ObjectInfo describes one stored blob.
type ObjectInfo struct {
	Key  string
	Size int64
}

// BlobStore provides content storage for the file areas. Keys are
// slash-separated paths such as "shared/notes.txt" or "inbox/bob/notes.txt".
// All operations stream through io.Reader/io.Writer so large files never
// need to be held in memory.
type BlobStore interface {
	// Put stores size bytes from r under key, replacing any existing
	// object with that key.
	Put(key string, r io.Reader, size int64) error

	// Get writes the object's content to w. Returns an error wrapping
	// ErrFileNotFound if no object exists under key.
	Get(key string, w io.Writer) error

	// Stat returns the object's info, or an error wrapping ErrFileNotFound.
	Stat(key string) (*ObjectInfo, error)

	// List returns the objects whose keys start with prefix, sorted by key.
	List(prefix string) ([]ObjectInfo, error)
}
