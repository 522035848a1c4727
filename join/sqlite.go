package join

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/miku/scholixdump/schema/dump"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS entity (
	id  TEXT PRIMARY KEY,
	doc BLOB NOT NULL
)`

// SQLiteIndex keeps entities in an on-disk sqlite database, for entity dumps
// that do not fit into memory. Entities are stored as JSON.
type SQLiteIndex struct {
	conn *sql.DB
	path string
	// Remove deletes the database file on Close.
	Remove bool
}

// OpenSQLiteIndex opens or creates an index database at path.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=synchronous(off)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping index: %w", err)
	}
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(runtime.NumCPU())
	idx := &SQLiteIndex{conn: conn, path: path}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return idx, nil
}

// Path returns the database file name.
func (idx *SQLiteIndex) Path() string {
	return idx.path
}

func (idx *SQLiteIndex) Put(ctx context.Context, e *dump.Entity) error {
	return idx.PutBatch(ctx, []*dump.Entity{e})
}

// PutBatch inserts entities in a single transaction.
func (idx *SQLiteIndex) PutBatch(ctx context.Context, es []*dump.Entity) error {
	tx, err := idx.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO entity (id, doc) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range es {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, e.DnetIdentifier, b); err != nil {
			return fmt.Errorf("insert %s: %w", e.DnetIdentifier, err)
		}
	}
	return tx.Commit()
}

func (idx *SQLiteIndex) Get(ctx context.Context, id string) (*dump.Entity, error) {
	var b []byte
	err := idx.conn.QueryRowContext(ctx, "SELECT doc FROM entity WHERE id = ?", id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMissingEntity
	}
	if err != nil {
		return nil, err
	}
	var e dump.Entity
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &e, nil
}

func (idx *SQLiteIndex) Len(ctx context.Context) (int, error) {
	var n int
	err := idx.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM entity").Scan(&n)
	return n, err
}

// Close checkpoints and closes the database, removing the file if requested.
func (idx *SQLiteIndex) Close() error {
	if idx.conn == nil {
		return nil
	}
	if _, err := idx.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.WithError(err).Warn("failed to checkpoint WAL")
	}
	if err := idx.conn.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	idx.conn = nil
	if idx.Remove {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(idx.path + suffix); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}
