package chunk

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/entwine-go/entwine/pkg/log"
)

// sqliteSchema stores one row per chunk key, gzip-compressed once the blob
// crosses a small threshold. Grounded on pkg/archive.SqliteArchive: same
// WAL/cache pragmas, same "BLOB column plus a compressed flag" shape,
// narrowed from a jobs table with rich metadata columns to a flat
// key/value chunk ledger since a chunk has no queryable fields of its own.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
    key        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    compressed BOOLEAN NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);
`

const compressThreshold = 2000

// SqliteStore is a local, file-backed Store implementation.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqliteStore opens (creating if absent) a sqlite database at path and
// ensures its schema exists.
func OpenSqliteStore(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("chunk: opening sqlite store %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Warnf("chunk: sqlite pragma %q failed: %v", p, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("chunk: creating sqlite schema: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) TryGet(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var compressed bool
	err := s.db.QueryRowContext(ctx, "SELECT data, compressed FROM chunks WHERE key = ?", key).Scan(&data, &compressed)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("chunk: sqlite query %q: %w", key, err)
	}
	if !compressed {
		return data, true, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("chunk: sqlite gzip open %q: %w", key, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("chunk: sqlite gzip read %q: %w", key, err)
	}
	return out, true, nil
}

func (s *SqliteStore) Put(ctx context.Context, key string, data []byte) error {
	payload := data
	compressed := false
	if len(data) > compressThreshold {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("chunk: sqlite gzip write %q: %w", key, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("chunk: sqlite gzip close %q: %w", key, err)
		}
		payload = buf.Bytes()
		compressed = true
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (key, data, compressed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			compressed = excluded.compressed,
			updated_at = excluded.updated_at
	`, key, payload, compressed, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("chunk: sqlite put %q: %w", key, err)
	}
	return nil
}

func (s *SqliteStore) Exists(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE key = ?", key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("chunk: sqlite exists %q: %w", key, err)
	}
	return count > 0, nil
}
