package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"vigil/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the journal schema changes; stale databases
// are refused rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// version of vigil.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrLocked indicates another vigil process holds the journal.
var ErrLocked = errors.New("history database is locked by another process")

// Submission kinds.
const (
	KindFile = "file"
	KindURL  = "url"
	KindBulk = "bulk"
)

// Submission statuses.
const (
	StatusDispatched = "dispatched"
	StatusAnalysed   = "analysed"
	StatusFailed     = "failed"
	StatusCommitted  = "committed"
)

// Record is one journal entry.
type Record struct {
	ID           string
	Kind         string
	Reference    string
	TaskID       string
	MediaID      *int64
	Status       string
	Detail       string
	UpdatedCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the SQLite-backed journal.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open initializes or connects to the journal in the configured data
// directory, taking the advisory lock first.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "history.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire history lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close releases the database and the lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Add journals a freshly dispatched submission and returns the stored record.
func (s *Store) Add(ctx context.Context, kind, reference, taskID string, mediaID *int64) (Record, error) {
	now := time.Now().UTC()
	record := Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Reference: reference,
		TaskID:    taskID,
		MediaID:   mediaID,
		Status:    StatusDispatched,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO submissions (id, kind, reference, task_id, media_id, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Kind, record.Reference, record.TaskID, record.MediaID,
		record.Status, record.CreatedAt.Format(time.RFC3339), record.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert submission: %w", err)
	}
	return record, nil
}

// UpdateStatus records a status change with optional detail text.
func (s *Store) UpdateStatus(ctx context.Context, id, status, detail string) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE submissions SET status = ?, detail = ?, updated_at = ? WHERE id = ?`,
		status, detail, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return requireRow(result, id)
}

// AttachMedia records the server-assigned media record.
func (s *Store) AttachMedia(ctx context.Context, id string, mediaID int64) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE submissions SET media_id = ?, updated_at = ? WHERE id = ?`,
		mediaID, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("attach media record: %w", err)
	}
	return requireRow(result, id)
}

// RecordCommit marks the submission committed with the number of verified
// appearances the server accepted.
func (s *Store) RecordCommit(ctx context.Context, id string, updatedCount int) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE submissions SET status = ?, updated_count = ?, updated_at = ? WHERE id = ?`,
		StatusCommitted, updatedCount, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	return requireRow(result, id)
}

// List returns the newest entries first, up to limit (0 means all).
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
        SELECT id, kind, reference, task_id, media_id, status, detail, updated_count, created_at, updated_at
        FROM submissions ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var mediaID sql.NullInt64
		var createdAt, updatedAt string
		if err := rows.Scan(&record.ID, &record.Kind, &record.Reference, &record.TaskID,
			&mediaID, &record.Status, &record.Detail, &record.UpdatedCount,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if mediaID.Valid {
			record.MediaID = &mediaID.Int64
		}
		if record.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return records, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("count affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no submission with id %s", id)
	}
	return nil
}
