package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cozychat/internal/chat"
	"cozychat/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRecordStore implements chat.RecordStore using SQLite.
type SQLiteRecordStore struct {
	db   *sql.DB
	path string
}

var _ chat.RecordStore = (*SQLiteRecordStore)(nil)

// NewSQLiteRecordStore creates a new SQLite record store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteRecordStore(path string) (*SQLiteRecordStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteRecordStore{db: db, path: path}, nil
}

// NewSQLiteRecordStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteRecordStoreFromDB(db *sql.DB) *SQLiteRecordStore {
	return &SQLiteRecordStore{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
//
// PRAGMAs travel in the DSN so every connection in the database/sql pool is
// configured identically: foreign keys on, and a busy timeout so concurrent
// uploads and permission checks wait for locks instead of failing
// immediately.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection. With more than one
	// connection in the pool, a statement scheduled onto a second
	// connection would see a brand-new empty database, so the pool is
	// capped at a single connection.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Migrate brings the schema to the latest version.
func (s *SQLiteRecordStore) Migrate() error {
	return migrations.Up(s.db)
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteRecordStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Upsert inserts rec, replacing any existing record with the same name.
// Re-uploads overwrite by name: last writer wins.
func (s *SQLiteRecordStore) Upsert(rec chat.FileRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO file_records (id, name, owner, recipient, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			owner = excluded.owner,
			recipient = excluded.recipient,
			size = excluded.size,
			uploaded_at = excluded.uploaded_at`,
		rec.ID, rec.Name, rec.Owner, nullable(rec.Recipient), rec.Size, rec.UploadedAt)
	if err != nil {
		return fmt.Errorf("upserting file record %q: %w", rec.Name, err)
	}
	return nil
}

// GetByName returns the record for name, or nil if no record exists.
func (s *SQLiteRecordStore) GetByName(name string) (*chat.FileRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, owner, recipient, size, uploaded_at
		FROM file_records WHERE name = ?`, name)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file record by name: %w", err)
	}
	return rec, nil
}

// VisibleTo returns the records user may see in a listing: all public files
// plus private files user uploaded or is the recipient of, ordered by name.
func (s *SQLiteRecordStore) VisibleTo(user string) ([]chat.FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, name, owner, recipient, size, uploaded_at
		FROM file_records
		WHERE recipient IS NULL OR recipient = ? OR owner = ?
		ORDER BY name`, user, user)
	if err != nil {
		return nil, fmt.Errorf("listing visible file records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// InboxFor returns the private records addressed to user, ordered by name.
func (s *SQLiteRecordStore) InboxFor(user string) ([]chat.FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, name, owner, recipient, size, uploaded_at
		FROM file_records
		WHERE recipient = ?
		ORDER BY name`, user)
	if err != nil {
		return nil, fmt.Errorf("listing inbox records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Close closes the underlying database connection.
func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*chat.FileRecord, error) {
	var rec chat.FileRecord
	var recipient sql.NullString
	var uploadedAt time.Time

	if err := row.Scan(&rec.ID, &rec.Name, &rec.Owner, &recipient, &rec.Size, &uploadedAt); err != nil {
		return nil, err
	}

	rec.Recipient = recipient.String
	rec.UploadedAt = uploadedAt
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]chat.FileRecord, error) {
	var recs []chat.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file record: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file records: %w", err)
	}
	return recs, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
