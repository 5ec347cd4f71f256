package catalogue

import (
	"context"

	"github.com/llehouerou/bpmdata/internal/store"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS artists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		mbids TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		mbids TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS releases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		mbids TEXT NOT NULL DEFAULT '[]',
		year INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		mbids TEXT NOT NULL DEFAULT '[]',
		title TEXT NOT NULL,
		bpm REAL,
		genre_id INTEGER REFERENCES genres(id) ON DELETE SET NULL,
		scanned_track_id INTEGER UNIQUE REFERENCES scanned_tracks(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS release_artists (
		release_id INTEGER NOT NULL REFERENCES releases(id) ON DELETE CASCADE,
		artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
		PRIMARY KEY (release_id, artist_id)
	)`,
	`CREATE TABLE IF NOT EXISTS release_tracks (
		release_id INTEGER NOT NULL REFERENCES releases(id) ON DELETE CASCADE,
		track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		PRIMARY KEY (release_id, track_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_release_artists_artist ON release_artists(artist_id)`,
	`CREATE INDEX IF NOT EXISTS idx_release_tracks_track ON release_tracks(track_id)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS artists (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(512) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		mbids TEXT NOT NULL,
		UNIQUE KEY uq_artists_slug (slug)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS genres (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(512) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		mbids TEXT NOT NULL,
		UNIQUE KEY uq_genres_slug (slug)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS releases (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(512) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		mbids TEXT NOT NULL,
		year INT NULL,
		UNIQUE KEY uq_releases_slug (slug)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(1024) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		mbids TEXT NOT NULL,
		title VARCHAR(512) NOT NULL,
		bpm DOUBLE NULL,
		genre_id BIGINT NULL,
		scanned_track_id BIGINT NULL,
		UNIQUE KEY uq_tracks_slug (slug),
		UNIQUE KEY uq_tracks_scanned (scanned_track_id),
		FOREIGN KEY (genre_id) REFERENCES genres(id) ON DELETE SET NULL,
		FOREIGN KEY (scanned_track_id) REFERENCES scanned_tracks(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS release_artists (
		release_id BIGINT NOT NULL,
		artist_id BIGINT NOT NULL,
		PRIMARY KEY (release_id, artist_id),
		KEY idx_release_artists_artist (artist_id),
		FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE,
		FOREIGN KEY (artist_id) REFERENCES artists(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS release_tracks (
		release_id BIGINT NOT NULL,
		track_id BIGINT NOT NULL,
		PRIMARY KEY (release_id, track_id),
		KEY idx_release_tracks_track (track_id),
		FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
}

// CreateTables creates the catalogue tables if they do not exist. The
// scanned_tracks table must already exist (store.Open creates it).
func (c *Catalogue) CreateTables(ctx context.Context) error {
	stmts := sqliteSchema
	if c.driver == store.DriverMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
