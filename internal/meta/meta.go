// Package meta persists index metadata in a local badger KV next to the
// graph database: last indexed commit, generation and per-file fingerprints.
//
// The graph store keeps the authoritative copy, committed atomically with
// the graph. This copy lets the update engine compute a diff without
// scanning the files table, and is trusted only while its generation
// matches the store's.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

const (
	headerKey  = "index"
	filePrefix = "file/"
)

// FileState is what the update engine needs to classify one file.
type FileState struct {
	Fingerprint  string `json:"fingerprint"`
	IdentityPath string `json:"identity_path,omitempty"`
	Language     string `json:"language"`
}

// State is the persisted metadata of one index.
type State struct {
	SchemaVersion int      `json:"schema_version"`
	Commit        string   `json:"commit"`
	Generation    int64    `json:"generation"`
	Languages     []string `json:"languages,omitempty"`
	IndexedAt     string   `json:"indexed_at"`

	Files map[string]FileState `json:"-"`
}

// Paths returns the file paths in sorted order.
func (s *State) Paths() []string {
	out := make([]string, 0, len(s.Files))
	for p := range s.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store wraps a badger database holding one State.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the metadata KV in dir. A nil logger disables
// badger's internal logging.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("meta: path is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create meta directory %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir).WithSyncWrites(true), logger)
}

// OpenInMemory opens a metadata KV that is lost on Close.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), nil)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored state, or nil if nothing has been saved yet.
func (s *Store) Load() (*State, error) {
	var st *State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(headerKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		st = &State{Files: make(map[string]FileState)}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, st)
		}); err != nil {
			return fmt.Errorf("decode header: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(filePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(filePrefix):])
			var fs FileState
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &fs)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			st.Files[path] = fs
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	return st, nil
}

// Save replaces the stored state. File entries are written first and the
// header last, so an interrupted save leaves the previous generation in the
// header and is detected as stale on the next Load.
func (s *Store) Save(st *State) error {
	if err := s.db.DropPrefix([]byte(filePrefix)); err != nil {
		return fmt.Errorf("clear file entries: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, path := range st.Paths() {
		val, err := json.Marshal(st.Files[path])
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		if err := wb.Set([]byte(filePrefix+path), val); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush file entries: %w", err)
	}

	header, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(headerKey), header)
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	slog.Debug("meta.save", "generation", st.Generation, "files", len(st.Files))
	return nil
}
