package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// OpenDB creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS records (
			path TEXT PRIMARY KEY,
			parent TEXT NOT NULL,
			key TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_parent ON records(parent)`,
		`CREATE TABLE IF NOT EXISTS record_values (
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			kind INTEGER NOT NULL,
			str TEXT,
			num INTEGER,
			PRIMARY KEY (path, name),
			FOREIGN KEY (path) REFERENCES records(path) ON DELETE CASCADE ON UPDATE CASCADE
		)`,
	}
	for _, s := range schema {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// unavailable marks a backend failure so callers can degrade instead of crash.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

// SQLiteStore persists records in two tables: one row per record and one row per value.
type SQLiteStore struct {
	db *DB
}

func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Enumerate(root string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM records WHERE parent = ? ORDER BY key`, root)
	if err != nil {
		return nil, unavailable("enumerate records", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, unavailable("scan record key", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("enumerate records", err)
	}
	return keys, nil
}

func (s *SQLiteStore) exists(q interface {
	QueryRow(string, ...any) *sql.Row
}, path string) (bool, error) {
	var one int
	err := q.QueryRow(`SELECT 1 FROM records WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Open(path string, writable bool) (Handle, error) {
	ok, err := s.exists(s.db, path)
	if err != nil {
		return nil, unavailable("open record", err)
	}
	if !ok {
		return nil, nil
	}
	return &sqlHandle{store: s, path: path, writable: writable}, nil
}

func (s *SQLiteStore) Create(path string) (Handle, error) {
	parent, key := Split(path)
	_, err := s.db.Exec(`
		INSERT INTO records (path, parent, key, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, path, parent, key, time.Now().Unix())
	if err != nil {
		return nil, unavailable("create record", err)
	}
	return &sqlHandle{store: s, path: path, writable: true}, nil
}

func (s *SQLiteStore) Delete(path string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM records WHERE path = ?`, path)
	if err != nil {
		return false, unavailable("delete record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("delete record", err)
	}
	return n > 0, nil
}

// Rename moves a record and its values in one transaction.
func (s *SQLiteStore) Rename(oldPath, newPath string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("begin rename", err)
	}
	defer tx.Rollback()

	ok, err := s.exists(tx, oldPath)
	if err != nil {
		return unavailable("rename record", err)
	}
	if !ok {
		return fmt.Errorf("rename %s: %w", oldPath, models.ErrStaleRecord)
	}
	taken, err := s.exists(tx, newPath)
	if err != nil {
		return unavailable("rename record", err)
	}
	if taken {
		return fmt.Errorf("rename to %s: %w", newPath, ErrExists)
	}

	parent, key := Split(newPath)
	if _, err := tx.Exec(`
		UPDATE records SET path = ?, parent = ?, key = ?, updated_at = ? WHERE path = ?
	`, newPath, parent, key, time.Now().Unix(), oldPath); err != nil {
		return unavailable("rename record", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit rename", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlHandle struct {
	store    *SQLiteStore
	path     string
	writable bool
	closed   bool
}

func (h *sqlHandle) Path() string { return h.path }

func (h *sqlHandle) Get(name string) (models.Value, bool, error) {
	if h.closed {
		return models.Value{}, false, ErrClosed
	}
	var (
		kind int
		str  sql.NullString
		num  sql.NullInt64
	)
	err := h.store.db.QueryRow(`
		SELECT kind, str, num FROM record_values WHERE path = ? AND name = ?
	`, h.path, name).Scan(&kind, &str, &num)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Value{}, false, nil
	}
	if err != nil {
		return models.Value{}, false, unavailable("get value", err)
	}
	if models.ValueKind(kind) == models.KindDWord {
		return models.DWordValue(uint32(num.Int64)), true, nil
	}
	return models.StringValue(str.String), true, nil
}

func (h *sqlHandle) Set(name string, v models.Value) error {
	if h.closed {
		return ErrClosed
	}
	if !h.writable {
		return ErrReadOnly
	}
	ok, err := h.store.exists(h.store.db, h.path)
	if err != nil {
		return unavailable("set value", err)
	}
	if !ok {
		return fmt.Errorf("set %s on %s: %w", name, h.path, models.ErrStaleRecord)
	}

	var (
		str sql.NullString
		num sql.NullInt64
	)
	if v.IsDWord() {
		num = sql.NullInt64{Int64: int64(v.DWord), Valid: true}
	} else {
		str = sql.NullString{String: v.Str, Valid: true}
	}
	_, err = h.store.db.Exec(`
		INSERT INTO record_values (path, name, kind, str, num)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, name) DO UPDATE SET kind = excluded.kind, str = excluded.str, num = excluded.num
	`, h.path, name, int(v.Kind), str, num)
	if err != nil {
		return unavailable("set value", err)
	}
	return nil
}

func (h *sqlHandle) Names() ([]string, error) {
	if h.closed {
		return nil, ErrClosed
	}
	rows, err := h.store.db.Query(`SELECT name FROM record_values WHERE path = ? ORDER BY name`, h.path)
	if err != nil {
		return nil, unavailable("list values", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, unavailable("scan value name", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list values", err)
	}
	return names, nil
}

func (h *sqlHandle) Close() error {
	h.closed = true
	return nil
}
