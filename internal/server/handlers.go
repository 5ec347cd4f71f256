package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/llehouerou/bpmdata/internal/catalogue"
	"github.com/llehouerou/bpmdata/internal/store"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Page wraps a list reply.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total,omitempty"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type TrackDetail struct {
	catalogue.Track
	Genre    *catalogue.Genre    `json:"genre,omitempty"`
	Releases []catalogue.Release `json:"releases"`
}

type ArtistDetail struct {
	catalogue.Artist
	Releases []catalogue.Release `json:"releases"`
}

type ReleaseDetail struct {
	catalogue.Release
	Artists []catalogue.Artist `json:"artists"`
	Tracks  []catalogue.Track  `json:"tracks"`
}

// HandleError writes an error reply and logs server-side failures.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{Message: message, Code: code}
	if err != nil {
		resp.Error = err.Error()
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("API error",
			"message", message,
			"error", err,
			"code", code,
			"path", c.Request().URL.Path,
		)
	}
	return c.JSON(code, resp)
}

func (s *Server) lookupError(c echo.Context, err error, what string) error {
	if errors.Is(err, catalogue.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
		return s.HandleError(c, err, what+" not found", http.StatusNotFound)
	}
	return s.HandleError(c, err, "failed to load "+what, http.StatusInternalServerError)
}

// paging reads limit and offset query parameters.
func paging(c echo.Context) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	if v := c.QueryParam("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = min(limit, maxLimit)
	}
	if v := c.QueryParam("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// Health handles GET /healthz
func (s *Server) Health(c echo.Context) error {
	if err := s.scanned.Ping(c.Request().Context()); err != nil {
		return s.HandleError(c, err, "database unavailable", http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListScanned handles GET /api/scanned
func (s *Server) ListScanned(c echo.Context) error {
	limit, offset, err := paging(c)
	if err != nil {
		return s.HandleError(c, err, "invalid paging parameters", http.StatusBadRequest)
	}
	ctx := c.Request().Context()

	total, err := s.scanned.Count(ctx)
	if err != nil {
		return s.HandleError(c, err, "failed to count scanned tracks", http.StatusInternalServerError)
	}
	items, err := s.scanned.List(ctx, limit, offset)
	if err != nil {
		return s.HandleError(c, err, "failed to list scanned tracks", http.StatusInternalServerError)
	}
	if items == nil {
		items = []store.ScannedTrack{}
	}
	return c.JSON(http.StatusOK, Page[store.ScannedTrack]{Items: items, Total: total, Limit: limit, Offset: offset})
}

// LookupScanned handles GET /api/scanned/lookup?path=
func (s *Server) LookupScanned(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return s.HandleError(c, nil, "path is required", http.StatusBadRequest)
	}
	t, err := s.scanned.ByPath(c.Request().Context(), path)
	if err != nil {
		return s.lookupError(c, err, "scanned track")
	}
	return c.JSON(http.StatusOK, t)
}

// ListTracks handles GET /api/tracks
func (s *Server) ListTracks(c echo.Context) error {
	limit, offset, err := paging(c)
	if err != nil {
		return s.HandleError(c, err, "invalid paging parameters", http.StatusBadRequest)
	}
	tracks, err := s.catalogue.Tracks(c.Request().Context(), limit, offset)
	if err != nil {
		return s.HandleError(c, err, "failed to list tracks", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, Page[catalogue.Track]{Items: tracks, Limit: limit, Offset: offset})
}

// GetTrack handles GET /api/tracks/:slug
func (s *Server) GetTrack(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := s.catalogue.TrackBySlug(ctx, c.Param("slug"))
	if err != nil {
		return s.lookupError(c, err, "track")
	}

	detail := TrackDetail{Track: *t}
	if t.GenreID != nil {
		g, err := s.catalogue.GenreByID(ctx, *t.GenreID)
		if err != nil && !errors.Is(err, catalogue.ErrNotFound) {
			return s.HandleError(c, err, "failed to load genre", http.StatusInternalServerError)
		}
		detail.Genre = g
	}
	if detail.Releases, err = s.catalogue.TrackReleases(ctx, t.ID); err != nil {
		return s.HandleError(c, err, "failed to load releases", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListArtists handles GET /api/artists
func (s *Server) ListArtists(c echo.Context) error {
	artists, err := s.catalogue.Artists(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "failed to list artists", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, Page[catalogue.Artist]{Items: artists})
}

// GetArtist handles GET /api/artists/:slug
func (s *Server) GetArtist(c echo.Context) error {
	ctx := c.Request().Context()
	a, err := s.catalogue.ArtistBySlug(ctx, c.Param("slug"))
	if err != nil {
		return s.lookupError(c, err, "artist")
	}
	releases, err := s.catalogue.ArtistReleases(ctx, a.ID)
	if err != nil {
		return s.HandleError(c, err, "failed to load releases", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, ArtistDetail{Artist: *a, Releases: releases})
}

// ListReleases handles GET /api/releases
func (s *Server) ListReleases(c echo.Context) error {
	releases, err := s.catalogue.Releases(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "failed to list releases", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, Page[catalogue.Release]{Items: releases})
}

// GetRelease handles GET /api/releases/:slug
func (s *Server) GetRelease(c echo.Context) error {
	ctx := c.Request().Context()
	r, err := s.catalogue.ReleaseBySlug(ctx, c.Param("slug"))
	if err != nil {
		return s.lookupError(c, err, "release")
	}
	detail := ReleaseDetail{Release: *r}
	if detail.Artists, err = s.catalogue.ReleaseArtists(ctx, r.ID); err != nil {
		return s.HandleError(c, err, "failed to load artists", http.StatusInternalServerError)
	}
	if detail.Tracks, err = s.catalogue.ReleaseTracks(ctx, r.ID); err != nil {
		return s.HandleError(c, err, "failed to load tracks", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListGenres handles GET /api/genres
func (s *Server) ListGenres(c echo.Context) error {
	genres, err := s.catalogue.Genres(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "failed to list genres", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, Page[catalogue.Genre]{Items: genres})
}
