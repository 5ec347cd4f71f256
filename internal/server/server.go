// Package server exposes the catalogue and the scanned records as a
// read-only JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/llehouerou/bpmdata/internal/catalogue"
	"github.com/llehouerou/bpmdata/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Catalogue is the read side of the catalogue repository.
type Catalogue interface {
	Artists(ctx context.Context) ([]catalogue.Artist, error)
	ArtistBySlug(ctx context.Context, slug string) (*catalogue.Artist, error)
	ArtistReleases(ctx context.Context, artistID int64) ([]catalogue.Release, error)
	Genres(ctx context.Context) ([]catalogue.Genre, error)
	GenreByID(ctx context.Context, id int64) (*catalogue.Genre, error)
	Releases(ctx context.Context) ([]catalogue.Release, error)
	ReleaseBySlug(ctx context.Context, slug string) (*catalogue.Release, error)
	ReleaseArtists(ctx context.Context, releaseID int64) ([]catalogue.Artist, error)
	ReleaseTracks(ctx context.Context, releaseID int64) ([]catalogue.Track, error)
	Tracks(ctx context.Context, limit, offset int) ([]catalogue.Track, error)
	TrackBySlug(ctx context.Context, slug string) (*catalogue.Track, error)
	TrackReleases(ctx context.Context, trackID int64) ([]catalogue.Release, error)
}

// Scanned is the read side of the scanned-record store.
type Scanned interface {
	List(ctx context.Context, limit, offset int) ([]store.ScannedTrack, error)
	Count(ctx context.Context) (int, error)
	ByPath(ctx context.Context, path string) (*store.ScannedTrack, error)
	Ping(ctx context.Context) error
}

// Config holds the server's collaborators.
type Config struct {
	Catalogue Catalogue
	Scanned   Scanned
	Logger    *slog.Logger
	Metrics   http.Handler // served on /metrics when set
}

// Server is the JSON API server.
type Server struct {
	Echo      *echo.Echo
	catalogue Catalogue
	scanned   Scanned
	logger    *slog.Logger
}

// New creates the server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		Echo:      echo.New(),
		catalogue: cfg.Catalogue,
		scanned:   cfg.Scanned,
		logger:    cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	s.initRoutes(cfg.Metrics)
	return s
}

func (s *Server) initRoutes(metrics http.Handler) {
	s.Echo.GET("/healthz", s.Health)

	api := s.Echo.Group("/api")
	api.GET("/scanned", s.ListScanned)
	api.GET("/scanned/lookup", s.LookupScanned)
	api.GET("/tracks", s.ListTracks)
	api.GET("/tracks/:slug", s.GetTrack)
	api.GET("/artists", s.ListArtists)
	api.GET("/artists/:slug", s.GetArtist)
	api.GET("/releases", s.ListReleases)
	api.GET("/releases/:slug", s.GetRelease)
	api.GET("/genres", s.ListGenres)

	if metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", addr)
		errCh <- s.Echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}
