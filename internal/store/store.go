package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stage-tech/basestar-sub001/internal/querysql"
)

// Schema version tracking:
// 0 - empty database
// 1 - schemas and changes tables
const currentSchemaVersion = 1

// DefaultTermLimit bounds the disjunctive normal form of a filter.
const DefaultTermLimit = 64

var (
	// ErrNotFound is returned when an object id does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrVersionConflict is returned when an update or delete names a
	// version other than the stored one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnknownSchema is returned for operations on unregistered schemas.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrInvalidObject is returned when object data does not match its schema.
	ErrInvalidObject = errors.New("invalid object")
)

// IDGenerator returns a new object id.
type IDGenerator func() (string, error)

// NewUUIDv7 is the default IDGenerator. Version 7 UUIDs sort by creation
// time, so id order follows insertion order.
func NewUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithChangeHandler registers a handler called after every committed
// write. Handlers run on the writing goroutine and must not block.
func WithChangeHandler(h ChangeHandler) Option {
	return func(s *Store) {
		s.handlers = append(s.handlers, h)
	}
}

// WithTermLimit bounds the number of normal form terms a filter may
// expand to. A limit <= 0 disables the check.
func WithTermLimit(n int) Option {
	return func(s *Store) {
		s.termLimit = n
	}
}

// Store provides durable storage for schema objects.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db        *sql.DB
	sql       *querysql.SQLCompiler
	seq       *sequencer
	newID     IDGenerator
	termLimit int
	handlers  []ChangeHandler

	mu      sync.RWMutex
	schemas map[string]*registered

	// writeMu serialises writes so change sequence numbers follow
	// commit order.
	writeMu sync.Mutex
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations, then reloads every schema
// registered by an earlier process.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:        db,
		sql:       querysql.NewSQLCompiler(),
		newID:     NewUUIDv7,
		termLimit: DefaultTermLimit,
		schemas:   make(map[string]*registered),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()
	last, err := s.LastSeq(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.seq = newSequencer(last)

	if err := s.loadSchemas(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("store opened", "path", path, "schemas", len(s.schemas), "seq", last)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 creates the schema registry and the change log. Object
// tables are created by Register.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schemas (
			name       TEXT PRIMARY KEY,
			definition TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS changes (
			seq       INTEGER PRIMARY KEY,
			op        TEXT NOT NULL,
			schema    TEXT NOT NULL,
			object_id TEXT NOT NULL,
			version   INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
