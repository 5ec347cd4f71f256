// Package store persists scanned-track records.
//
// The path column carries a UNIQUE constraint: concurrent writers racing on
// the same file resolve to exactly one row, and the loser gets ErrDuplicate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Drivers understood by Open.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

var (
	// ErrDuplicate is returned by Insert when a record for the path exists.
	ErrDuplicate = errors.New("scanned track already exists")
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("scanned track not found")
	// ErrUnsupportedDriver is returned by Open for unknown drivers.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and creates the scanned_tracks schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	driver = strings.ToLower(driver)

	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			// Ensure directory exists
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
		dsn = withSQLitePragmas(dsn)
	case DriverMySQL:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	s, err := New(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle and ensures the schema exists.
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if err := initSchema(ctx, db, driver); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, driver: driver, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle, shared with the catalogue tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the SQL dialect in use.
func (s *Store) Driver() string {
	return s.driver
}

// Ping reports whether the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func withSQLitePragmas(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqlitePragmas
}
