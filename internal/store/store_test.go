package store_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"cozychat/internal/chat"
	"cozychat/internal/testutil"
)

func TestFileStore_UploadPublic_Download(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestFileStore(t)

	content := "meeting notes"
	rec, err := s.Upload("Bob", "", "notes.txt", strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !rec.Public() {
		t.Error("record.Public() = false, want true")
	}

	// Any user may download a public file.
	for _, user := range []string{"Bob", "Alice", "Carol"} {
		var buf bytes.Buffer
		if _, err := s.Download(user, "notes.txt", &buf); err != nil {
			t.Fatalf("Download(%q) error = %v", user, err)
		}
		if buf.String() != content {
			t.Errorf("Download(%q) = %q, want %q", user, buf.String(), content)
		}
	}
}

func TestFileStore_PrivateFileIsolation(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestFileStore(t)

	content := "for bob only"
	if _, err := s.Upload("Alice", "Bob", "notes.txt", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	// Bob sees it in list and inbox.
	bobList, err := s.List("Bob")
	if err != nil {
		t.Fatalf("List(Bob) error = %v", err)
	}
	if len(bobList) != 1 || bobList[0].Name != "notes.txt" {
		t.Errorf("List(Bob) = %+v, want notes.txt", bobList)
	}
	bobInbox, err := s.Inbox("Bob")
	if err != nil {
		t.Fatalf("Inbox(Bob) error = %v", err)
	}
	if len(bobInbox) != 1 || bobInbox[0].Name != "notes.txt" {
		t.Errorf("Inbox(Bob) = %+v, want notes.txt", bobInbox)
	}

	// Carol cannot see or download it.
	carolList, err := s.List("Carol")
	if err != nil {
		t.Fatalf("List(Carol) error = %v", err)
	}
	if len(carolList) != 0 {
		t.Errorf("List(Carol) = %+v, want empty", carolList)
	}
	var buf bytes.Buffer
	if _, err := s.Download("Carol", "notes.txt", &buf); !errors.Is(err, chat.ErrPermissionDenied) {
		t.Errorf("Download(Carol) error = %v, want chat.ErrPermissionDenied", err)
	}

	// Alice, the uploader, may download her own private upload.
	buf.Reset()
	if _, err := s.Download("Alice", "notes.txt", &buf); err != nil {
		t.Fatalf("Download(Alice) error = %v", err)
	}
	if buf.String() != content {
		t.Errorf("Download(Alice) = %q, want %q", buf.String(), content)
	}

	// Bob, the recipient, may download it too.
	buf.Reset()
	if _, err := s.Download("Bob", "notes.txt", &buf); err != nil {
		t.Fatalf("Download(Bob) error = %v", err)
	}
}

func TestFileStore_DownloadMissing(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestFileStore(t)

	var buf bytes.Buffer
	_, err := s.Download("Alice", "ghost.txt", &buf)
	if !errors.Is(err, chat.ErrFileNotFound) {
		t.Errorf("Download() error = %v, want chat.ErrFileNotFound", err)
	}
	if errors.Is(err, chat.ErrPermissionDenied) {
		t.Error("Download() of missing file must not be a permission error")
	}
}

func TestFileStore_OverwriteByName(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestFileStore(t)

	if _, err := s.Upload("Bob", "", "notes.txt", strings.NewReader("v1"), 2); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := s.Upload("Bob", "", "notes.txt", strings.NewReader("version2"), 8); err != nil {
		t.Fatalf("re-Upload() error = %v", err)
	}

	var buf bytes.Buffer
	rec, err := s.Download("Alice", "notes.txt", &buf)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if buf.String() != "version2" {
		t.Errorf("Download() = %q, want %q", buf.String(), "version2")
	}
	if rec.Size != 8 {
		t.Errorf("record.Size = %d, want 8", rec.Size)
	}
}

func TestFileStore_StageAndUploadStaged(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestFileStore(t)

	if err := s.Stage("report.pdf", strings.NewReader("pdf bytes"), 9); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	staged, err := s.Outbox()
	if err != nil {
		t.Fatalf("Outbox() error = %v", err)
	}
	if len(staged) != 1 || staged[0].Key != "outbox/report.pdf" {
		t.Errorf("Outbox() = %+v, want staged report.pdf", staged)
	}

	rec, err := s.UploadStaged("Server", "", "report.pdf")
	if err != nil {
		t.Fatalf("UploadStaged() error = %v", err)
	}
	if rec.Owner != "Server" || !rec.Public() {
		t.Errorf("record = %+v, want public upload by Server", rec)
	}

	var buf bytes.Buffer
	if _, err := s.Download("Anyone", "report.pdf", &buf); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if buf.String() != "pdf bytes" {
		t.Errorf("Download() = %q, want %q", buf.String(), "pdf bytes")
	}
}

func TestFileStore_UploadStaged_Missing(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestFileStore(t)

	if _, err := s.UploadStaged("Server", "", "ghost.txt"); !errors.Is(err, chat.ErrFileNotFound) {
		t.Errorf("UploadStaged() error = %v, want chat.ErrFileNotFound", err)
	}
}

func TestFileStore_ListOrdering(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestFileStore(t)

	for _, name := range []string{"zebra.txt", "apple.txt", "mango.txt"} {
		if _, err := s.Upload("Bob", "", name, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Upload(%q) error = %v", name, err)
		}
	}

	recs, err := s.List("Anyone")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"apple.txt", "mango.txt", "zebra.txt"}
	if len(recs) != len(want) {
		t.Fatalf("len(List()) = %d, want %d", len(recs), len(want))
	}
	for i, name := range want {
		if recs[i].Name != name {
			t.Errorf("List()[%d] = %q, want %q", i, recs[i].Name, name)
		}
	}
}
