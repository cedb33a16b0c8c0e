// Package store implements the file-sharing service: directory-backed
// content areas plus per-file visibility metadata and the permission checks
// that guard downloads.
package store

import (
	"fmt"
	"io"

	"cozychat/internal/chat"
)

// FileStore coordinates the metadata database and the blob areas. Files live
// in three logical areas: "shared" (public), "inbox/<user>" (private files
// addressed to that user) and "outbox" (staged uploads awaiting
// distribution).
type FileStore struct {
	records chat.RecordStore
	blobs   chat.BlobStore
	logger  chat.Logger
	clock   chat.Clock
	idgen   chat.IDGenerator
}

// NewFileStore creates a FileStore with the provided dependencies.
func NewFileStore(records chat.RecordStore, blobs chat.BlobStore, logger chat.Logger, clock chat.Clock, idgen chat.IDGenerator) *FileStore {
	return &FileStore{
		records: records,
		blobs:   blobs,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Upload stores size bytes of content for owner under name. An empty
// recipient makes the file public; otherwise only owner and recipient may
// download it. Re-uploading an existing name replaces both content and
// record (last writer wins).
func (s *FileStore) Upload(owner, recipient, name string, r io.Reader, size int64) (*chat.FileRecord, error) {
	rec := chat.FileRecord{
		ID:         s.idgen.New(),
		Name:       name,
		Owner:      owner,
		Recipient:  recipient,
		Size:       size,
		UploadedAt: s.clock.Now(),
	}

	if err := s.blobs.Put(s.keyFor(rec), r, size); err != nil {
		return nil, fmt.Errorf("storing content for %q: %w", name, err)
	}
	if err := s.records.Upsert(rec); err != nil {
		return nil, fmt.Errorf("recording upload of %q: %w", name, err)
	}

	s.logger.Info("file uploaded", "name", name, "owner", owner, "recipient", recipient, "size", size)
	return &rec, nil
}

// UploadStaged distributes a file previously staged in the outbox area.
// Returns an error wrapping chat.ErrFileNotFound if nothing is staged under
// name.
func (s *FileStore) UploadStaged(owner, recipient, name string) (*chat.FileRecord, error) {
	staged := "outbox/" + name
	info, err := s.blobs.Stat(staged)
	if err != nil {
		return nil, fmt.Errorf("staged file %q: %w", name, err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.blobs.Get(staged, pw))
	}()

	rec, err := s.Upload(owner, recipient, name, pr, info.Size)
	if err != nil {
		pr.CloseWithError(err) // unblock the copier if Put bailed early
		return nil, err
	}
	return rec, nil
}

// Download streams the named file's content to w after checking that
// requester may fetch it. The two failure modes stay distinguishable:
// chat.ErrFileNotFound when no record exists, chat.ErrPermissionDenied when
// the record exists but requester is not authorized.
func (s *FileStore) Download(requester, name string, w io.Writer) (*chat.FileRecord, error) {
	rec, err := s.records.GetByName(name)
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", name, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%q: %w", name, chat.ErrFileNotFound)
	}
	if !rec.DownloadableBy(requester) {
		s.logger.Warn("download denied", "name", name, "requester", requester, "owner", rec.Owner)
		return nil, fmt.Errorf("%q: %w", name, chat.ErrPermissionDenied)
	}

	if err := s.blobs.Get(s.keyFor(*rec), w); err != nil {
		return nil, fmt.Errorf("fetching content for %q: %w", name, err)
	}

	s.logger.Info("file downloaded", "name", name, "requester", requester)
	return rec, nil
}

// List returns the records visible to requester: all public files plus
// private files requester uploaded or received.
func (s *FileStore) List(requester string) ([]chat.FileRecord, error) {
	recs, err := s.records.VisibleTo(requester)
	if err != nil {
		return nil, fmt.Errorf("listing files for %q: %w", requester, err)
	}
	return recs, nil
}

// Inbox returns the private records addressed to user.
func (s *FileStore) Inbox(user string) ([]chat.FileRecord, error) {
	recs, err := s.records.InboxFor(user)
	if err != nil {
		return nil, fmt.Errorf("listing inbox for %q: %w", user, err)
	}
	return recs, nil
}

// Outbox returns the staged uploads awaiting distribution.
func (s *FileStore) Outbox() ([]chat.ObjectInfo, error) {
	objects, err := s.blobs.List("outbox")
	if err != nil {
		return nil, fmt.Errorf("listing outbox: %w", err)
	}
	return objects, nil
}

// Stage places content into the outbox area without distributing it.
func (s *FileStore) Stage(name string, r io.Reader, size int64) error {
	if err := s.blobs.Put("outbox/"+name, r, size); err != nil {
		return fmt.Errorf("staging %q: %w", name, err)
	}
	return nil
}

// keyFor maps a record to its blob key: public files live in shared/,
// private files in the recipient's inbox.
func (s *FileStore) keyFor(rec chat.FileRecord) string {
	if rec.Public() {
		return "shared/" + rec.Name
	}
	return "inbox/" + rec.Recipient + "/" + rec.Name
}
