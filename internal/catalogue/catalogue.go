// Package catalogue manages the long-lived catalogue of artists, genres,
// releases and tracks. Every entity carries a unique slug derived from its
// name and an optional list of MusicBrainz ids.
package catalogue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/llehouerou/bpmdata/internal/store"
)

var (
	// ErrSlugTaken is returned when another entity already owns the slug.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrNotFound is returned when no entity matches.
	ErrNotFound = errors.New("catalogue entry not found")
	// ErrEmptySlug is returned for names that produce no slug characters.
	ErrEmptySlug = errors.New("name has no sluggable characters")
)

// Entity holds the fields shared by every catalogue entry.
type Entity struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Slug  string   `json:"slug"`
	MBIDs []string `json:"mbids"`
}

type Artist struct {
	Entity
}

type Genre struct {
	Entity
}

type Release struct {
	Entity
	Year *int `json:"year"`
}

// Track is a catalogued track, usually promoted from a scanned record.
type Track struct {
	Entity
	Title          string   `json:"title"`
	BPM            *float64 `json:"bpm"`
	GenreID        *int64   `json:"genre_id,omitempty"`
	ScannedTrackID *int64   `json:"scanned_track_id,omitempty"`
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Catalogue is the catalogue repository.
type Catalogue struct {
	db     *sql.DB
	driver string
}

// New wraps db. driver selects the SQL dialect ("sqlite" or "mysql").
func New(db *sql.DB, driver string) *Catalogue {
	return &Catalogue{db: db, driver: driver}
}

func (c *Catalogue) insertIgnore() string {
	if c.driver == store.DriverMySQL {
		return "INSERT IGNORE INTO"
	}
	return "INSERT OR IGNORE INTO"
}

func encodeMBIDs(mbids []string) (string, error) {
	if mbids == nil {
		mbids = []string{}
	}
	b, err := json.Marshal(mbids)
	return string(b), err
}

func decodeMBIDs(s string) ([]string, error) {
	mbids := []string{}
	if s == "" {
		return mbids, nil
	}
	if err := json.Unmarshal([]byte(s), &mbids); err != nil {
		return nil, fmt.Errorf("decode mbids: %w", err)
	}
	return mbids, nil
}

// prepare fills the slug from the name and validates it.
func prepare(e *Entity) error {
	if e.Slug == "" {
		e.Slug = Slugify(e.Name)
	}
	if e.Slug == "" {
		return fmt.Errorf("%w: %q", ErrEmptySlug, e.Name)
	}
	return nil
}

// insertEntity inserts the common columns plus extra ones into table.
func insertEntity(ctx context.Context, q querier, table string, e *Entity, extraCols string, extra ...any) error {
	if err := prepare(e); err != nil {
		return err
	}
	mbids, err := encodeMBIDs(e.MBIDs)
	if err != nil {
		return err
	}

	cols := "name, slug, mbids"
	vals := "?, ?, ?"
	args := []any{e.Name, e.Slug, mbids}
	if extraCols != "" {
		cols += ", " + extraCols
		for range extra {
			vals += ", ?"
		}
		args = append(args, extra...)
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO `+table+` (`+cols+`) VALUES (`+vals+`)`, args...)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s %q", ErrSlugTaken, table, e.Slug)
		}
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	e.ID, err = res.LastInsertId()
	return err
}
