package internal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var _ IndexStore = (*SQLiteIndex)(nil)

const sqliteIndexSchema = `
CREATE TABLE IF NOT EXISTS memory_index (
	key         TEXT NOT NULL,
	tier        TEXT NOT NULL,
	path        TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	size        INTEGER NOT NULL,
	archived_at TEXT,
	PRIMARY KEY (key, tier)
);`

// SQLiteIndex stores index records in an embedded SQLite database. Every
// mutation commits on its own; Persist checkpoints the write-ahead log.
type SQLiteIndex struct {
	db *sql.DB
}

func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteIndexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

func (s *SQLiteIndex) Get(key string, tier Tier) (IndexRecord, bool, error) {
	row := s.db.QueryRow(
		`SELECT key, tier, path, timestamp, size, archived_at FROM memory_index WHERE key = ? AND tier = ?`,
		key, string(tier),
	)
	rec, err := scanIndexRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return IndexRecord{}, false, nil
	}
	if err != nil {
		return IndexRecord{}, false, fmt.Errorf("query index: %w", err)
	}
	return rec, true, nil
}

func (s *SQLiteIndex) Put(rec IndexRecord) error {
	var archivedAt sql.NullString
	if rec.ArchivedAt != nil {
		archivedAt = sql.NullString{String: rec.ArchivedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO memory_index (key, tier, path, timestamp, size, archived_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key, tier) DO UPDATE SET
			path = excluded.path,
			timestamp = excluded.timestamp,
			size = excluded.size,
			archived_at = excluded.archived_at`,
		rec.Key, string(rec.Tier), rec.Path, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Size, archivedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert index record: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Delete(key string, tier Tier) error {
	if _, err := s.db.Exec(`DELETE FROM memory_index WHERE key = ? AND tier = ?`, key, string(tier)); err != nil {
		return fmt.Errorf("delete index record: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) List(tier Tier) ([]IndexRecord, error) {
	rows, err := s.db.Query(
		`SELECT key, tier, path, timestamp, size, archived_at FROM memory_index WHERE tier = ? ORDER BY key`,
		string(tier),
	)
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	defer rows.Close()

	var out []IndexRecord
	for rows.Next() {
		rec, err := scanIndexRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan index record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Persist() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("checkpoint index: %w", err)
	}
	return nil
}

// Reload is a no-op: every read goes to the database.
func (s *SQLiteIndex) Reload() error {
	return nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndexRecord(row rowScanner) (IndexRecord, error) {
	var (
		rec        IndexRecord
		tier       string
		timestamp  string
		archivedAt sql.NullString
	)
	if err := row.Scan(&rec.Key, &tier, &rec.Path, &timestamp, &rec.Size, &archivedAt); err != nil {
		return IndexRecord{}, err
	}
	rec.Tier = Tier(tier)

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return IndexRecord{}, fmt.Errorf("parse timestamp: %w", err)
	}
	rec.Timestamp = ts

	if archivedAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, archivedAt.String)
		if err != nil {
			return IndexRecord{}, fmt.Errorf("parse archived_at: %w", err)
		}
		rec.ArchivedAt = &at
	}
	return rec, nil
}
