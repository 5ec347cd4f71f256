package catalogue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/llehouerou/bpmdata/internal/db"
)

const entityCols = "id, name, slug, mbids"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(r rowScanner, e *Entity, extra ...any) error {
	var mbids string
	dest := append([]any{&e.ID, &e.Name, &e.Slug, &mbids}, extra...)
	if err := r.Scan(dest...); err != nil {
		return err
	}
	var err error
	e.MBIDs, err = decodeMBIDs(mbids)
	return err
}

func scanArtist(r rowScanner) (Artist, error) {
	var a Artist
	err := scanEntity(r, &a.Entity)
	return a, err
}

func scanGenre(r rowScanner) (Genre, error) {
	var g Genre
	err := scanEntity(r, &g.Entity)
	return g, err
}

const releaseCols = entityCols + ", year"

func scanRelease(r rowScanner) (Release, error) {
	var (
		rel  Release
		year sql.NullInt64
	)
	if err := scanEntity(r, &rel.Entity, &year); err != nil {
		return rel, err
	}
	if year.Valid {
		y := int(year.Int64)
		rel.Year = &y
	}
	return rel, nil
}

const trackCols = entityCols + ", title, bpm, genre_id, scanned_track_id"

func scanTrack(r rowScanner) (Track, error) {
	var (
		t       Track
		bpm     sql.NullFloat64
		genreID sql.NullInt64
		scanned sql.NullInt64
	)
	if err := scanEntity(r, &t.Entity, &t.Title, &bpm, &genreID, &scanned); err != nil {
		return t, err
	}
	t.BPM = db.NullFloat64ToPtr(bpm)
	if genreID.Valid {
		t.GenreID = &genreID.Int64
	}
	if scanned.Valid {
		t.ScannedTrackID = &scanned.Int64
	}
	return t, nil
}

func queryOne[T any](ctx context.Context, q querier, scan func(rowScanner) (T, error), query string, args ...any) (*T, error) {
	v, err := scan(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryAll[T any](ctx context.Context, q querier, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// Artists

// AddArtist inserts a; the slug is derived from the name when empty.
func (c *Catalogue) AddArtist(ctx context.Context, a *Artist) error {
	return insertEntity(ctx, c.db, "artists", &a.Entity, "")
}

func (c *Catalogue) ArtistBySlug(ctx context.Context, slug string) (*Artist, error) {
	return queryOne(ctx, c.db, scanArtist, `SELECT `+entityCols+` FROM artists WHERE slug = ?`, slug)
}

func (c *Catalogue) Artists(ctx context.Context) ([]Artist, error) {
	return queryAll(ctx, c.db, scanArtist, `SELECT `+entityCols+` FROM artists ORDER BY slug`)
}

// ReleaseArtists returns the artists credited on a release.
func (c *Catalogue) ReleaseArtists(ctx context.Context, releaseID int64) ([]Artist, error) {
	return queryAll(ctx, c.db, scanArtist, `
		SELECT a.id, a.name, a.slug, a.mbids FROM artists a
		JOIN release_artists ra ON ra.artist_id = a.id
		WHERE ra.release_id = ?
		ORDER BY a.slug
	`, releaseID)
}

// Genres

func (c *Catalogue) AddGenre(ctx context.Context, g *Genre) error {
	return insertEntity(ctx, c.db, "genres", &g.Entity, "")
}

func (c *Catalogue) GenreBySlug(ctx context.Context, slug string) (*Genre, error) {
	return queryOne(ctx, c.db, scanGenre, `SELECT `+entityCols+` FROM genres WHERE slug = ?`, slug)
}

func (c *Catalogue) GenreByID(ctx context.Context, id int64) (*Genre, error) {
	return queryOne(ctx, c.db, scanGenre, `SELECT `+entityCols+` FROM genres WHERE id = ?`, id)
}

func (c *Catalogue) Genres(ctx context.Context) ([]Genre, error) {
	return queryAll(ctx, c.db, scanGenre, `SELECT `+entityCols+` FROM genres ORDER BY slug`)
}

// Releases

func (c *Catalogue) AddRelease(ctx context.Context, r *Release) error {
	return insertEntity(ctx, c.db, "releases", &r.Entity, "year", intPtrToNull(r.Year))
}

func (c *Catalogue) ReleaseBySlug(ctx context.Context, slug string) (*Release, error) {
	return queryOne(ctx, c.db, scanRelease, `SELECT `+releaseCols+` FROM releases WHERE slug = ?`, slug)
}

func (c *Catalogue) Releases(ctx context.Context) ([]Release, error) {
	return queryAll(ctx, c.db, scanRelease, `SELECT `+releaseCols+` FROM releases ORDER BY slug`)
}

// ArtistReleases returns the releases an artist is credited on.
func (c *Catalogue) ArtistReleases(ctx context.Context, artistID int64) ([]Release, error) {
	return queryAll(ctx, c.db, scanRelease, `
		SELECT r.id, r.name, r.slug, r.mbids, r.year FROM releases r
		JOIN release_artists ra ON ra.release_id = r.id
		WHERE ra.artist_id = ?
		ORDER BY r.year, r.slug
	`, artistID)
}

// TrackReleases returns the releases a track appears on.
func (c *Catalogue) TrackReleases(ctx context.Context, trackID int64) ([]Release, error) {
	return queryAll(ctx, c.db, scanRelease, `
		SELECT r.id, r.name, r.slug, r.mbids, r.year FROM releases r
		JOIN release_tracks rt ON rt.release_id = r.id
		WHERE rt.track_id = ?
		ORDER BY r.slug
	`, trackID)
}

// Tracks

func (c *Catalogue) AddTrack(ctx context.Context, t *Track) error {
	return insertEntity(ctx, c.db, "tracks", &t.Entity, "title, bpm, genre_id, scanned_track_id",
		t.Title, db.PtrToNullFloat64(t.BPM), int64PtrToNull(t.GenreID), int64PtrToNull(t.ScannedTrackID))
}

func (c *Catalogue) TrackBySlug(ctx context.Context, slug string) (*Track, error) {
	return queryOne(ctx, c.db, scanTrack, `SELECT `+trackCols+` FROM tracks WHERE slug = ?`, slug)
}

// Tracks returns tracks ordered by slug. A non-positive limit returns all.
func (c *Catalogue) Tracks(ctx context.Context, limit, offset int) ([]Track, error) {
	query := `SELECT ` + trackCols + ` FROM tracks ORDER BY slug`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(offset, 0))
	}
	return queryAll(ctx, c.db, scanTrack, query, args...)
}

// ReleaseTracks returns the tracks of a release.
func (c *Catalogue) ReleaseTracks(ctx context.Context, releaseID int64) ([]Track, error) {
	return queryAll(ctx, c.db, scanTrack, `
		SELECT t.id, t.name, t.slug, t.mbids, t.title, t.bpm, t.genre_id, t.scanned_track_id
		FROM tracks t
		JOIN release_tracks rt ON rt.track_id = t.id
		WHERE rt.release_id = ?
		ORDER BY t.slug
	`, releaseID)
}

// Associations

// LinkReleaseArtist credits an artist on a release. Linking twice is a no-op.
func (c *Catalogue) LinkReleaseArtist(ctx context.Context, releaseID, artistID int64) error {
	return c.link(ctx, c.db, "release_artists", "artist_id", releaseID, artistID)
}

// LinkReleaseTrack adds a track to a release. Linking twice is a no-op.
func (c *Catalogue) LinkReleaseTrack(ctx context.Context, releaseID, trackID int64) error {
	return c.link(ctx, c.db, "release_tracks", "track_id", releaseID, trackID)
}

func (c *Catalogue) link(ctx context.Context, q querier, table, col string, releaseID, otherID int64) error {
	_, err := q.ExecContext(ctx,
		c.insertIgnore()+` `+table+` (release_id, `+col+`) VALUES (?, ?)`, releaseID, otherID)
	if err != nil {
		return fmt.Errorf("link %s: %w", table, err)
	}
	return nil
}

// ensureEntity looks e up by slug and inserts it when missing. It reports
// whether a row was created.
func ensureEntity(ctx context.Context, q querier, table string, e *Entity, extraCols string, extra ...any) (bool, error) {
	if err := prepare(e); err != nil {
		return false, err
	}
	lookup := func() error {
		return q.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE slug = ?`, e.Slug).Scan(&e.ID)
	}

	err := lookup()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	err = insertEntity(ctx, q, table, e, extraCols, extra...)
	if errors.Is(err, ErrSlugTaken) {
		// Lost a race with another writer.
		return false, lookup()
	}
	return err == nil, err
}

func intPtrToNull(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func int64PtrToNull(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
