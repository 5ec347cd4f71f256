package store

import (
	"context"
	"database/sql"
)

const currentSchemaVersion = 1

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS scanned_tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tempo REAL,
		duration REAL NOT NULL,
		bitrate INTEGER NOT NULL,
		metadata TEXT NOT NULL,
		echoprint TEXT NOT NULL,
		chromaprint TEXT,
		path TEXT NOT NULL UNIQUE,
		scanned_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scanned_tracks_scanned_at ON scanned_tracks(scanned_at)`,
	`INSERT OR IGNORE INTO schema_version (version) VALUES (1)`,
}

// MySQL cannot index unbounded TEXT; 768 utf8mb4 characters fit the
// 3072-byte InnoDB key limit. path uses a binary collation so the unique key
// matches the filesystem's case and accent sensitivity.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INT PRIMARY KEY
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS scanned_tracks (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		tempo DOUBLE NULL,
		duration DOUBLE NOT NULL,
		bitrate INT NOT NULL,
		metadata TEXT NOT NULL,
		echoprint MEDIUMTEXT NOT NULL,
		chromaprint MEDIUMTEXT NULL,
		path VARCHAR(768) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
		scanned_at BIGINT NOT NULL,
		UNIQUE KEY uq_scanned_tracks_path (path),
		KEY idx_scanned_tracks_scanned_at (scanned_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`INSERT IGNORE INTO schema_version (version) VALUES (1)`,
}

func initSchema(ctx context.Context, db *sql.DB, driver string) error {
	stmts := sqliteSchema
	if driver == DriverMySQL {
		stmts = mysqlSchema
	}
	// The MySQL driver rejects multi-statement strings by default.
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the recorded schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v)
	return v, err
}
