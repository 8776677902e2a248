// Package store is the SQLite backend of the catalog gateway and run ledger.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/util"
	_ "modernc.org/sqlite" // SQLite driver
)

type migration struct {
	version int
	name    string
	ddl     string
}

// migrations are applied in order inside one transaction
var migrations = []migration{
	{1, "catalog, episodes and run ledger", schemaV1},
	{2, "lookup indexes", schemaV2},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Store is the SQLite implementation of catalog.Store
type Store struct {
	db   *sql.DB
	path string
}

var _ catalog.Store = (*Store)(nil)

// OpenOptions holds options for opening a database
type OpenOptions struct {
	// BulkPragmas trades durability for write throughput on large crawls
	BulkPragmas bool
}

// Open opens or creates the catalog database at path
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates the catalog database and brings its schema
// up to date
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", util.ErrInvalidConfig)
	}
	if opts == nil {
		opts = &OpenOptions{}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and crawl workers would
	// otherwise queue on SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path}
	if opts.BulkPragmas {
		if err := s.exec("PRAGMA synchronous = NORMAL", "PRAGMA temp_store = MEMORY", "PRAGMA cache_size = -64000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply bulk pragmas: %w", err)
		}
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) exec(statements ...string) error {
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path is the database file
func (s *Store) Path() string {
	return s.path
}

// SQLiteVersion returns the version of the embedded SQLite
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check
func (s *Store) CheckIntegrity() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func (s *Store) migrate() error {
	if err := s.exec(schemaVersionTable); err != nil {
		return err
	}
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}

	return s.Transaction(context.Background(), func(tx *sql.Tx) error {
		for _, m := range migrations {
			if m.version <= version {
				continue
			}
			if _, err := tx.Exec(m.ddl); err != nil {
				return fmt.Errorf("schema v%d (%s): %w", m.version, m.name, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_version (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
				return fmt.Errorf("record schema v%d: %w", m.version, err)
			}
			util.DebugLog("store: applied schema v%d (%s)", m.version, m.name)
		}
		return nil
	})
}

// SchemaVersion returns the applied schema version
func (s *Store) SchemaVersion() (int, error) {
	return s.getSchemaVersion()
}

func (s *Store) getSchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

// Transaction runs fn in a transaction, committing when it returns nil
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
