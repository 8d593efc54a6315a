// Package store persists the code graph in SQLite.
//
// Every write goes through Commit, which applies a graph.Delta and the index
// metadata in one transaction. Reads never observe a partially applied
// delta.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DeusData/codegraph/internal/diag"
)

// SchemaVersion is bumped whenever the table layout changes. A store with a
// different version is rebuilt by a full index.
const SchemaVersion = 1

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection for graph storage.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// Open opens or creates the database at dbPath, creating parent directories.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("mkdir: %w", err))
	}
	// _txlock=immediate takes the write lock at BEGIN, so two writers never
	// both pass the generation check.
	dsn := "file:" + dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("open db: %w", err))
	}
	return initStore(db, dbPath)
}

// ErrNoDatabase is returned by OpenReadOnly when no graph database exists.
var ErrNoDatabase = errors.New("no graph database")

// OpenReadOnly opens an existing database without creating files,
// directories or schema.
func OpenReadOnly(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dbPath, ErrNoDatabase)
		}
		return nil, diag.New(diag.StoreConnectionFailure, err)
	}
	dsn := "file:" + dbPath + "?mode=ro&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("open db: %w", err))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("ping %s: %w", dbPath, err))
	}
	s := &Store{db: db, q: db, dbPath: dbPath}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&n); err != nil {
		db.Close()
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("read schema: %w", err))
	}
	if n == 0 {
		db.Close()
		return nil, fmt.Errorf("%s: %w", dbPath, ErrNoDatabase)
	}
	return s, nil
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_txlock=immediate")
	if err != nil {
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("open memory db: %w", err))
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return initStore(db, ":memory:")
}

func initStore(db *sql.DB, dbPath string) (*Store, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("ping %s: %w", dbPath, err))
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, diag.New(diag.StoreConnectionFailure, fmt.Errorf("init schema: %w", err))
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
// The callback receives a transaction-scoped Store; all store methods called
// on txStore use the transaction. The receiver's q field is never mutated, so
// concurrent readers (using s.q == s.db) are unaffected.
func (s *Store) WithTransaction(ctx context.Context, fn func(txStore *Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ReadSnapshot runs fn on a store whose reads all come from one read
// transaction, so they observe a single committed generation. The
// transaction is deferred and never holds the write lock.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(snap *Store) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
			slog.Debug("store.read_snapshot.rollback", "err", err)
		}
	}()
	return fn(&Store{db: s.db, q: connQuerier{ctx: ctx, conn: conn}, dbPath: s.dbPath})
}

// connQuerier adapts a pinned connection to Querier.
type connQuerier struct {
	ctx  context.Context
	conn *sql.Conn
}

func (c connQuerier) Exec(query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(c.ctx, query, args...)
}

func (c connQuerier) Query(query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(c.ctx, query, args...)
}

func (c connQuerier) QueryRow(query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(c.ctx, query, args...)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sql.DB (for advanced queries).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path is the database file, or ":memory:".
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		identity_path TEXT NOT NULL,
		language TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		commit_sha TEXT DEFAULT '',
		line_count INTEGER DEFAULT 0,
		imports TEXT DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);

	CREATE TABLE IF NOT EXISTS symbols (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		language TEXT NOT NULL,
		start_byte INTEGER DEFAULT 0,
		end_byte INTEGER DEFAULT 0,
		start_line INTEGER DEFAULT 0,
		end_line INTEGER DEFAULT 0,
		fingerprint TEXT DEFAULT '',
		signature TEXT DEFAULT '',
		visibility TEXT DEFAULT '',
		docstring TEXT DEFAULT '',
		parent_id TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	CREATE INDEX IF NOT EXISTS idx_symbols_qn ON symbols(qualified_name);
	CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path, start_byte);
	CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT DEFAULT '',
		target_name TEXT DEFAULT '',
		confidence TEXT NOT NULL,
		candidates TEXT DEFAULT '[]',
		file_path TEXT NOT NULL,
		ref TEXT DEFAULT '',
		scopes TEXT DEFAULT '[]',
		lookup_key TEXT DEFAULT '',
		import_key TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, kind);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, kind);
	CREATE INDEX IF NOT EXISTS idx_edges_file ON edges(file_path);
	CREATE INDEX IF NOT EXISTS idx_edges_lookup ON edges(lookup_key);
	CREATE INDEX IF NOT EXISTS idx_edges_import_key ON edges(import_key) WHERE import_key != '';
	`
	_, err := s.db.Exec(schema)
	return err
}

// marshalList serializes a string slice to JSON.
func marshalList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// unmarshalList deserializes a JSON string slice. Empty lists come back nil.
func unmarshalList(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil
	}
	return v
}

// Now returns the current time in ISO 8601 format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// placeholders returns "?,?,...,?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 2*n-1)
	for i := range b {
		if i%2 == 0 {
			b[i] = '?'
		} else {
			b[i] = ','
		}
	}
	return string(b)
}

// maxVars leaves room under SQLite's 999 bind variable limit.
const maxVars = 998

// chunks splits keys into slices that fit one IN (...) clause.
func chunks(keys []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(keys); i += size {
		out = append(out, keys[i:min(i+size, len(keys))])
	}
	return out
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}
