package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/talentbase/cvsearch/internal/profile"
)

// SQLiteStore backs both the record store and the attachment store with a
// single SQLite database. Records are stored as JSON text, attachments as
// blobs in a separate table sharing the identifier.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// ensures both tables exist. The parent directory is created on demand.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL mode for concurrent ingestion and query flows.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id         TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS attachments (
			id         TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Records returns a RecordStore backed by this database.
func (s *SQLiteStore) Records() RecordStore {
	return &recordStore{db: s.db}
}

// Attachments returns an AttachmentStore backed by this database.
func (s *SQLiteStore) Attachments() AttachmentStore {
	return &attachmentStore{db: s.db}
}

type recordStore struct {
	db *sql.DB
}

func (r *recordStore) Create(ctx context.Context, rec *profile.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (id, body, created_at) VALUES (?, ?, ?)`,
		rec.ID, string(body), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("record %s: %w", rec.ID, ErrDuplicateID)
		}
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

func (r *recordStore) Read(ctx context.Context, id string) (*profile.Record, error) {
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}

	rec, err := profile.FromJSON([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

func (r *recordStore) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

type attachmentStore struct {
	db *sql.DB
}

func (a *attachmentStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attachments WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting attachments: %w", err)
	}
	return count > 0, nil
}

func (a *attachmentStore) Insert(ctx context.Context, id string, data []byte) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO attachments (id, data, created_at) VALUES (?, ?, ?)`,
		id, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("attachment %s: %w", id, ErrDuplicateID)
		}
		return fmt.Errorf("inserting attachment: %w", err)
	}
	return nil
}

func (a *attachmentStore) Read(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT data FROM attachments WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return data, nil
}

// ReadBase64 returns the attachment for id base64-encoded, the form the
// presentation layer embeds in a browser view.
func ReadBase64(ctx context.Context, attachments AttachmentStore, id string) (string, error) {
	data, err := attachments.Read(ctx, id)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// isUniqueViolation reports whether the error is a primary key conflict.
// modernc.org/sqlite surfaces SQLITE_CONSTRAINT without an exported sentinel,
// so the message is matched.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
