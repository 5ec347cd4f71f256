package catalogue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/llehouerou/bpmdata/internal/db"
	"github.com/llehouerou/bpmdata/internal/store"
)

const promoteBatchSize = 500

// ScannedSource lists scanned records in id order.
type ScannedSource interface {
	List(ctx context.Context, limit, offset int) ([]store.ScannedTrack, error)
}

// PromoteStats counts what Promote did.
type PromoteStats struct {
	Scanned  int // records read
	Skipped  int // records without artist or title
	Created  int // tracks created
	Existing int // tracks already catalogued
}

// Promote creates catalogue entries from scanned records that carry both an
// artist and a title. Each record becomes a track named "Artist - Title",
// credited through its release when one is known. Running it again creates
// nothing new.
func (c *Catalogue) Promote(ctx context.Context, src ScannedSource, logger *slog.Logger) (PromoteStats, error) {
	var stats PromoteStats
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for offset := 0; ; offset += promoteBatchSize {
		batch, err := src.List(ctx, promoteBatchSize, offset)
		if err != nil {
			return stats, fmt.Errorf("list scanned tracks: %w", err)
		}

		for i := range batch {
			st := &batch[i]
			stats.Scanned++

			m := st.Metadata
			if m.Artist == nil || m.Title == nil {
				stats.Skipped++
				continue
			}

			var created bool
			err := db.WithTx(ctx, c.db, func(tx *sql.Tx) error {
				var err error
				created, err = c.promoteOne(ctx, tx, st)
				return err
			})
			if errors.Is(err, ErrEmptySlug) {
				logger.Warn("cannot promote track", "path", st.Path, "error", err)
				stats.Skipped++
				continue
			}
			if err != nil {
				return stats, fmt.Errorf("promote %s: %w", st.Path, err)
			}
			if created {
				stats.Created++
				logger.Debug("track promoted", "path", st.Path)
			} else {
				stats.Existing++
			}
		}

		if len(batch) < promoteBatchSize {
			break
		}
	}

	logger.Info("promotion finished",
		"scanned", stats.Scanned,
		"created", stats.Created,
		"existing", stats.Existing,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

func (c *Catalogue) promoteOne(ctx context.Context, tx *sql.Tx, st *store.ScannedTrack) (bool, error) {
	m := st.Metadata

	artist := &Artist{Entity: Entity{Name: *m.Artist}}
	if _, err := ensureEntity(ctx, tx, "artists", &artist.Entity, ""); err != nil {
		return false, err
	}

	var genreID *int64
	if m.Genre != nil && Slugify(*m.Genre) != "" {
		genre := &Genre{Entity: Entity{Name: *m.Genre}}
		if _, err := ensureEntity(ctx, tx, "genres", &genre.Entity, ""); err != nil {
			return false, err
		}
		genreID = &genre.ID
	}

	scannedID := st.ID
	track := &Track{
		Entity:         Entity{Name: *m.Artist + " - " + *m.Title},
		Title:          *m.Title,
		BPM:            st.Tempo,
		GenreID:        genreID,
		ScannedTrackID: &scannedID,
	}
	created, err := ensureEntity(ctx, tx, "tracks", &track.Entity, "title, bpm, genre_id, scanned_track_id",
		track.Title, db.PtrToNullFloat64(track.BPM), int64PtrToNull(track.GenreID), int64PtrToNull(track.ScannedTrackID))
	if err != nil {
		return false, err
	}

	if m.Release != nil && Slugify(*m.Release) != "" {
		release := &Release{Entity: Entity{Name: *m.Release}}
		if _, err := ensureEntity(ctx, tx, "releases", &release.Entity, "year", intPtrToNull(m.Year)); err != nil {
			return false, err
		}
		if err := c.link(ctx, tx, "release_artists", "artist_id", release.ID, artist.ID); err != nil {
			return false, err
		}
		if err := c.link(ctx, tx, "release_tracks", "track_id", release.ID, track.ID); err != nil {
			return false, err
		}
	}
	return created, nil
}
