package catalogue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/llehouerou/bpmdata/internal/musicbrainz"
)

// minMatchScore is the lowest MusicBrainz search score accepted as a match.
const minMatchScore = 90

// MBLookup searches MusicBrainz.
type MBLookup interface {
	SearchArtists(ctx context.Context, name string) ([]musicbrainz.Artist, error)
	SearchReleases(ctx context.Context, artist, title string) ([]musicbrainz.Release, error)
}

// EnrichStats counts what Enrich did.
type EnrichStats struct {
	Artists   int // artists that received ids
	Releases  int // releases that received ids
	Unmatched int // entities with no or an ambiguous match
	Failed    int // lookups that returned an error
}

// Enrich fills the MusicBrainz ids of artists and releases that have none.
// An artist matches when exactly one confident search result has the same
// slug. A release keeps every confident result with the same slug by the
// same artist, since each edition has its own id. Lookup errors are logged
// and counted; only cancellation and database errors stop the run.
func (c *Catalogue) Enrich(ctx context.Context, mb MBLookup, logger *slog.Logger) (EnrichStats, error) {
	var stats EnrichStats
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	artists, err := c.Artists(ctx)
	if err != nil {
		return stats, fmt.Errorf("list artists: %w", err)
	}
	for _, a := range artists {
		if len(a.MBIDs) > 0 {
			continue
		}
		results, err := mb.SearchArtists(ctx, a.Name)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			logger.Warn("musicbrainz artist lookup failed", "artist", a.Name, "error", err)
			stats.Failed++
			continue
		}
		ids := matchArtists(a.Slug, results)
		if len(ids) != 1 {
			logger.Debug("no unique musicbrainz artist", "artist", a.Name, "candidates", len(ids))
			stats.Unmatched++
			continue
		}
		if err := c.setMBIDs(ctx, "artists", a.ID, ids); err != nil {
			return stats, err
		}
		logger.Info("artist enriched", "artist", a.Name, "mbid", ids[0])
		stats.Artists++
	}

	releases, err := c.Releases(ctx)
	if err != nil {
		return stats, fmt.Errorf("list releases: %w", err)
	}
	for _, r := range releases {
		if len(r.MBIDs) > 0 {
			continue
		}
		credited, err := c.ReleaseArtists(ctx, r.ID)
		if err != nil {
			return stats, fmt.Errorf("list release artists: %w", err)
		}
		var artist Artist
		if len(credited) > 0 {
			artist = credited[0]
		}

		results, err := mb.SearchReleases(ctx, artist.Name, r.Name)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			logger.Warn("musicbrainz release lookup failed", "release", r.Name, "error", err)
			stats.Failed++
			continue
		}
		ids := matchReleases(r.Slug, artist.Slug, results)
		if len(ids) == 0 {
			stats.Unmatched++
			continue
		}
		if err := c.setMBIDs(ctx, "releases", r.ID, ids); err != nil {
			return stats, err
		}
		logger.Info("release enriched", "release", r.Name, "mbids", len(ids))
		stats.Releases++
	}

	return stats, nil
}

func matchArtists(slug string, results []musicbrainz.Artist) []string {
	var ids []string
	for _, a := range results {
		if a.Score >= minMatchScore && Slugify(a.Name) == slug && !slices.Contains(ids, a.ID) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func matchReleases(slug, artistSlug string, results []musicbrainz.Release) []string {
	var ids []string
	for _, r := range results {
		if r.Score < minMatchScore || Slugify(r.Title) != slug {
			continue
		}
		if artistSlug != "" && Slugify(r.Artist) != artistSlug {
			continue
		}
		if !slices.Contains(ids, r.ID) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (c *Catalogue) setMBIDs(ctx context.Context, table string, id int64, mbids []string) error {
	encoded, err := encodeMBIDs(mbids)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE `+table+` SET mbids = ? WHERE id = ?`, encoded, id); err != nil {
		return fmt.Errorf("update %s mbids: %w", table, err)
	}
	return nil
}
