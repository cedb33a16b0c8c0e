package chat

import "time"

// SessionInfo is a read-only snapshot of one registered session, as exposed
// by registry listings. The live session itself is owned by the registry.
type SessionInfo struct {
	Username    string
	ConnectedAt time.Time
}

// Message is one chat line in flight: constructed by a connection handler,
// fanned out by the broadcaster, then discarded. Never persisted.
type Message struct {
	Sender string
	Body   string
	At     time.Time
}

// FileRecord is the metadata for one uploaded file. Records are created on
// upload and replaced wholesale on a re-upload with the same name; they are
// never mutated in place.
type FileRecord struct {
	ID         string
	Name       string
	Owner      string
	Recipient  string // empty for public files
	Size       int64
	UploadedAt time.Time
}

// Public reports whether the file is downloadable by any session.
func (r FileRecord) Public() bool { return r.Recipient == "" }

// DownloadableBy reports whether user may fetch the file's content.
// For private files the authorized set is exactly the uploader and the
// named recipient.
func (r FileRecord) DownloadableBy(user string) bool {
	return r.Public() || user == r.Owner || user == r.Recipient
}

// VisibleTo reports whether the file appears in user's listings.
func (r FileRecord) VisibleTo(user string) bool {
	return r.DownloadableBy(user)
}

// RecordStore persists file metadata. Upsert replaces any existing record
// with the same name (last writer wins).
type RecordStore interface {
	Upsert(rec FileRecord) error
	GetByName(name string) (*FileRecord, error)
	VisibleTo(user string) ([]FileRecord, error)
	InboxFor(user string) ([]FileRecord, error)
	Close() error
}
