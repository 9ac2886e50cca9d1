// Package store implements the persistence schema, the simplex-tree index,
// and the canonicalizing knowledge store over a single embedded SQLite
// database file.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"simplexkg/internal/logging"
)

// Sentinel errors realizing the error taxonomy for this package.
var (
	// ErrNotFound is returned by lookups that find nothing; not-found is
	// a value, never an exception, per the taxonomy.
	ErrNotFound = errors.New("not found")
	// ErrHasCofaces is returned by RemoveSimplex when the target node has
	// children and cascade removal was not requested.
	ErrHasCofaces = errors.New("simplex has cofaces")
	// ErrInvalidSimplex is returned for contract violations such as an
	// empty vertex-id list passed to Insert.
	ErrInvalidSimplex = errors.New("invalid simplex")
	// ErrPersistence wraps database failures that are not the expected
	// uniqueness-dedup case.
	ErrPersistence = errors.New("persistence failure")
)

// Store is the single-writer persistence layer for one database file. All
// exported methods serialize through mu, mirroring the single-connection,
// single-writer discipline of the system this was adapted from.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore opens (and if necessary creates) the database file at path,
// enabling WAL journaling and foreign-key enforcement, and installs the
// schema.
func NewStore(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewStore")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create directory %s: %v", ErrPersistence, dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database %s: %v", ErrPersistence, path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma failed %q: %v", pragma, err)
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: install schema: %v", ErrPersistence, err)
	}

	logging.Store("store initialized at %s", path)
	return &Store{db: db, dbPath: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
