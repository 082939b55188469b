package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Cache is a durable store of materialized layouts, one per cache name.
// A single Cache may hold layouts for many controllers, each attached to
// its own name.
type Cache struct {
	db *sql.DB

	mu     sync.Mutex
	owners map[string]bool
}

// CacheIOError wraps a storage failure. It is fatal to the calling
// controller instance: the controller surfaces it instead of silently
// falling back to an empty layout.
type CacheIOError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *CacheIOError) Error() string {
	return fmt.Sprintf("layout cache %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying storage error.
func (e *CacheIOError) Unwrap() error {
	return e.Err
}

// PreconditionViolation reports a programming error, such as deleting a
// cache name that a live controller still owns.
type PreconditionViolation struct {
	Message string
}

// Error implements the error interface.
func (e *PreconditionViolation) Error() string {
	return "precondition violated: " + e.Message
}

// Open creates or opens a layout cache database at the given path.
// Applies required pragmas and migrations automatically; idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Cache, error) {
	return open(path)
}

// OpenInMemory opens a cache with the same contract but no durability past
// process lifetime. Used when a controller has no cache name.
func OpenInMemory() (*Cache, error) {
	return open(":memory:")
}

func open(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &CacheIOError{Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &CacheIOError{Op: "open", Err: err}
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY and, for :memory:, keeps every query on the same
	// database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, &CacheIOError{Op: "open", Err: err}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, &CacheIOError{Op: "open", Err: err}
	}

	return &Cache{db: db, owners: make(map[string]bool)}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Attach claims exclusive ownership of a cache name for one controller.
// Returns a PreconditionViolation if the name is already owned.
func (c *Cache) Attach(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owners[name] {
		return &PreconditionViolation{Message: fmt.Sprintf("cache name %q is already owned by a live controller", name)}
	}
	c.owners[name] = true
	return nil
}

// Detach releases ownership of a cache name. Idempotent.
func (c *Cache) Detach(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.owners, name)
}

// Delete removes the durable record for one cache name. Idempotent:
// deleting a nonexistent name is a no-op. Deleting a name still owned by a
// live controller is a programming error.
func (c *Cache) Delete(ctx context.Context, name string) error {
	c.mu.Lock()
	owned := c.owners[name]
	c.mu.Unlock()
	if owned {
		return &PreconditionViolation{Message: fmt.Sprintf("cannot delete cache %q: a live controller still references it", name)}
	}

	// ON DELETE CASCADE clears sections and rows.
	if _, err := c.db.ExecContext(ctx, `DELETE FROM layouts WHERE cache_name = ?`, name); err != nil {
		return &CacheIOError{Op: "delete", Err: err}
	}
	return nil
}

// DeleteAll removes every durable record. Same precondition as Delete, for
// every name.
func (c *Cache) DeleteAll(ctx context.Context) error {
	c.mu.Lock()
	var owned string
	for name := range c.owners {
		owned = name
		break
	}
	c.mu.Unlock()
	if owned != "" {
		return &PreconditionViolation{Message: fmt.Sprintf("cannot delete all caches: %q is still owned by a live controller", owned)}
	}

	if _, err := c.db.ExecContext(ctx, `DELETE FROM layouts`); err != nil {
		return &CacheIOError{Op: "delete all", Err: err}
	}
	return nil
}

// Names returns the cache names with a persisted layout, ordered by name.
func (c *Cache) Names(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT cache_name FROM layouts ORDER BY cache_name`)
	if err != nil {
		return nil, &CacheIOError{Op: "list names", Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &CacheIOError{Op: "list names", Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &CacheIOError{Op: "list names", Err: err}
	}
	return names, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	// No migrations yet beyond the initial schema.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
