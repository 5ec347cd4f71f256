package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/llehouerou/bpmdata/internal/db"
)

// Metadata is the descriptive part of a scanned track, stored as JSON.
// Absent fields are null.
type Metadata struct {
	Artist  *string `json:"artist"`
	Title   *string `json:"title"`
	Genre   *string `json:"genre"`
	Release *string `json:"release"`
	Year    *int    `json:"year,omitempty"`
}

// ScannedTrack is one row of scanned_tracks. Rows are write-once.
type ScannedTrack struct {
	ID          int64     `json:"id"`
	Tempo       *float64  `json:"tempo"`
	Duration    float64   `json:"duration"`
	Bitrate     int       `json:"bitrate"`
	Metadata    Metadata  `json:"metadata"`
	Echoprint   string    `json:"echoprint"`
	Chromaprint *string   `json:"chromaprint"`
	Path        string    `json:"path"`
	ScannedAt   time.Time `json:"scanned_at"`
}

const scannedColumns = `id, tempo, duration, bitrate, metadata, echoprint, chromaprint, path, scanned_at`

// Exists reports whether a record for path is already stored.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM scanned_tracks WHERE path = ? LIMIT 1`, path,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", path, err)
	}
	return true, nil
}

// Insert stores t and returns its id. A record for the same path yields
// ErrDuplicate. ID and ScannedAt are filled in on success.
func (s *Store) Insert(ctx context.Context, t *ScannedTrack) (int64, error) {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	scannedAt := t.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scanned_tracks (tempo, duration, bitrate, metadata, echoprint, chromaprint, path, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		db.PtrToNullFloat64(t.Tempo),
		t.Duration,
		t.Bitrate,
		string(meta),
		t.Echoprint,
		db.PtrToNullString(t.Chromaprint),
		t.Path,
		scannedAt.Unix(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicate, t.Path)
		}
		return 0, fmt.Errorf("insert %s: %w", t.Path, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", t.Path, err)
	}
	t.ID = id
	t.ScannedAt = time.Unix(scannedAt.Unix(), 0)
	return id, nil
}

// ByPath returns the record stored for path.
func (s *Store) ByPath(ctx context.Context, path string) (*ScannedTrack, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scannedColumns+` FROM scanned_tracks WHERE path = ?`, path)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// List returns records ordered by id. A non-positive limit returns all rows.
func (s *Store) List(ctx context.Context, limit, offset int) ([]ScannedTrack, error) {
	query := `SELECT ` + scannedColumns + ` FROM scanned_tracks ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []ScannedTrack
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scanned_tracks`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(r rowScanner) (*ScannedTrack, error) {
	var (
		t           ScannedTrack
		tempo       sql.NullFloat64
		meta        string
		chromaprint sql.NullString
		scannedAt   int64
	)
	if err := r.Scan(&t.ID, &tempo, &t.Duration, &t.Bitrate, &meta,
		&t.Echoprint, &chromaprint, &t.Path, &scannedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", t.Path, err)
	}
	t.Tempo = db.NullFloat64ToPtr(tempo)
	t.Chromaprint = db.NullStringToPtr(chromaprint)
	t.ScannedAt = time.Unix(scannedAt, 0)
	return &t, nil
}
