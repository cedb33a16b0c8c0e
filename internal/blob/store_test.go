package blob

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"cozychat/internal/chat"
	"cozychat/internal/config"
)

// storeFactories builds each backend under test against a fresh root.
var storeFactories = map[string]func(t *testing.T) chat.BlobStore{
	"filesystem": func(t *testing.T) chat.BlobStore {
		s, err := NewFileSystemStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		return s
	},
	"memory": func(t *testing.T) chat.BlobStore {
		return NewMemoryStore()
	},
}

func TestBlobStore_PutGetRoundTrip(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)

			content := []byte("file contents\x00binary ok")
			if err := s.Put("shared/notes.txt", bytes.NewReader(content), int64(len(content))); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			var buf bytes.Buffer
			if err := s.Get("shared/notes.txt", &buf); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !bytes.Equal(buf.Bytes(), content) {
				t.Errorf("Get() = %q, want %q", buf.Bytes(), content)
			}
		})
	}
}

func TestBlobStore_GetMissing(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)

			var buf bytes.Buffer
			err := s.Get("shared/nope.txt", &buf)
			if !errors.Is(err, chat.ErrFileNotFound) {
				t.Errorf("Get() error = %v, want chat.ErrFileNotFound", err)
			}
		})
	}
}

func TestBlobStore_StatAndOverwrite(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)

			if err := s.Put("outbox/a.txt", strings.NewReader("first"), 5); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := s.Put("outbox/a.txt", strings.NewReader("second!"), 7); err != nil {
				t.Fatalf("overwrite Put() error = %v", err)
			}

			info, err := s.Stat("outbox/a.txt")
			if err != nil {
				t.Fatalf("Stat() error = %v", err)
			}
			if info.Size != 7 {
				t.Errorf("Size = %d, want 7 after overwrite", info.Size)
			}

			if _, err := s.Stat("outbox/missing"); !errors.Is(err, chat.ErrFileNotFound) {
				t.Errorf("Stat(missing) error = %v, want chat.ErrFileNotFound", err)
			}
		})
	}
}

func TestBlobStore_PutSizeMismatch(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)

			if err := s.Put("shared/x", strings.NewReader("abc"), 99); err == nil {
				t.Error("Put() with wrong size expected error")
			}
		})
	}
}

func TestBlobStore_List(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)

			seed := map[string]string{
				"shared/b.txt":      "bb",
				"shared/a.txt":      "a",
				"inbox/bob/c.txt":   "ccc",
				"inbox/alice/d.txt": "dddd",
			}
			for key, content := range seed {
				if err := s.Put(key, strings.NewReader(content), int64(len(content))); err != nil {
					t.Fatalf("Put(%q) error = %v", key, err)
				}
			}

			shared, err := s.List("shared")
			if err != nil {
				t.Fatalf("List(shared) error = %v", err)
			}
			if len(shared) != 2 || shared[0].Key != "shared/a.txt" || shared[1].Key != "shared/b.txt" {
				t.Errorf("List(shared) = %+v, want sorted a.txt, b.txt", shared)
			}

			bobInbox, err := s.List("inbox/bob")
			if err != nil {
				t.Fatalf("List(inbox/bob) error = %v", err)
			}
			if len(bobInbox) != 1 || bobInbox[0].Key != "inbox/bob/c.txt" || bobInbox[0].Size != 3 {
				t.Errorf("List(inbox/bob) = %+v, want just c.txt of size 3", bobInbox)
			}
		})
	}
}

func TestFileSystemStore_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	for _, key := range []string{"../outside", "shared/../../etc/passwd", "/abs/path"} {
		if err := s.Put(key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("Put(%q) expected error for escaping key", key)
		}
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		if _, err := NewStoreFromConfig(config.BlobConfig{Type: "memory"}); err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		t.Parallel()
		if _, err := NewStoreFromConfig(config.BlobConfig{Type: "filesystem", FSRoot: t.TempDir()}); err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
	})

	t.Run("filesystem without root", func(t *testing.T) {
		t.Parallel()
		if _, err := NewStoreFromConfig(config.BlobConfig{Type: "filesystem"}); err == nil {
			t.Fatal("expected error for missing fs_root")
		}
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		t.Parallel()
		if _, err := NewStoreFromConfig(config.BlobConfig{Type: "s3"}); err == nil {
			t.Fatal("expected error for missing s3_bucket")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		if _, err := NewStoreFromConfig(config.BlobConfig{Type: "ftp"}); err == nil {
			t.Fatal("expected error for unknown type")
		}
	})
}
