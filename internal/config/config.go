package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/bpmdata/internal/scan"
	"github.com/llehouerou/bpmdata/internal/store"
)

const appName = "bpmdata"

type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Scan      ScanConfig      `koanf:"scan"`
	Analyzers AnalyzersConfig `koanf:"analyzers"`
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`

	MusicBrainz MusicBrainzConfig `koanf:"musicbrainz"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // "sqlite" (default) or "mysql"
	DSN    string `koanf:"dsn"`    // sqlite file path or mysql DSN; empty uses the XDG data dir
}

// ScanConfig holds the scan pipeline limits and policies.
type ScanConfig struct {
	Workers            int            `koanf:"workers"`              // 0 means one per CPU
	Solo               bool           `koanf:"solo"`                 // process files inline, no pool
	Extensions         []string       `koanf:"extensions"`           // default [".mp3"]
	MaxFileSize        int64          `koanf:"max_file_size"`        // bytes (default: 50,000,000)
	MaxDurationSeconds float64        `koanf:"max_duration_seconds"` // default: 1800
	FileTimeoutSeconds *int           `koanf:"file_timeout_seconds"` // per-file deadline (default: 300, 0 disables)
	TagPolicy          scan.TagPolicy `koanf:"tag_policy"`           // "title-needs-artist" or "artist-and-title"
	RequireTempo       bool           `koanf:"require_tempo"`        // skip files whose tempo cannot be estimated
	TagFallback        bool           `koanf:"tag_fallback"`         // fill missing fields from embedded tags
}

// AnalyzersConfig holds the external analyzer binaries.
type AnalyzersConfig struct {
	Echoprint  string `koanf:"echoprint"`   // default "echoprint-codegen"
	Fpcalc     string `koanf:"fpcalc"`      // default "fpcalc"
	Sox        string `koanf:"sox"`         // default "sox"
	BPM        string `koanf:"bpm"`         // default "bpm"
	SampleRate int    `koanf:"sample_rate"` // resample rate fed to bpm (default: 44100)
}

// LogConfig configures the process-wide logger.
type LogConfig struct {
	File    string `koanf:"file"`    // append-only log file; empty uses the XDG state dir
	Level   string `koanf:"level"`   // debug, info, warn, error
	Console *bool  `koanf:"console"` // mirror to stderr (default: true)
}

// ServerConfig holds the JSON API settings.
type ServerConfig struct {
	Listen string `koanf:"listen"` // default "127.0.0.1:8080"
}

// MetricsConfig holds the Prometheus endpoint used during scans.
type MetricsConfig struct {
	Listen string `koanf:"listen"` // empty disables the endpoint
}

// MusicBrainzConfig configures catalogue enrichment.
type MusicBrainzConfig struct {
	BaseURL   string `koanf:"base_url"`   // empty uses musicbrainz.org
	UserAgent string `koanf:"user_agent"` // contact string sent with every request
}

// Default limits.
const (
	DefaultMaxFileSize        int64   = 50_000_000
	DefaultMaxDurationSeconds float64 = 30 * 60
	DefaultFileTimeoutSeconds         = 300
	DefaultSampleRate                 = 44100
	DefaultListen                     = "127.0.0.1:8080"
	DefaultLogLevel                   = "info"
	defaultLogFileName                = "progress.log"
	defaultDBFileName                 = "bpmdata.db"
)

// Load reads the config files in priority order. An explicit path, when
// given, is loaded last and must exist.
func Load(explicit string) (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if explicit != "" {
		if err := k.Load(file.Provider(expandPath(explicit)), toml.Parser()); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.Database.DSN != "" && cfg.DatabaseDriver() == store.DriverSQLite {
		cfg.Database.DSN = expandPath(cfg.Database.DSN)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. $XDG_CONFIG_HOME/bpmdata/config.toml
	paths = append(paths, filepath.Join(xdg.ConfigHome, appName, "config.toml"))

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// DatabaseDriver returns the configured driver, defaulting to sqlite.
func (c *Config) DatabaseDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if driver == "" {
		return store.DriverSQLite
	}
	return driver
}

// DatabaseDSN returns the DSN, placing the sqlite file under the XDG data
// dir when none is configured.
func (c *Config) DatabaseDSN() (string, error) {
	if c.Database.DSN != "" {
		return c.Database.DSN, nil
	}
	return xdg.DataFile(filepath.Join(appName, defaultDBFileName))
}

// LogFile returns the log file path, defaulting to the XDG state dir.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	return xdg.StateFile(filepath.Join(appName, defaultLogFileName))
}

// LogLevel returns the configured level or "info".
func (c *Config) LogLevel() string {
	if c.Log.Level == "" {
		return DefaultLogLevel
	}
	return strings.ToLower(c.Log.Level)
}

// LogConsole reports whether log records are mirrored to stderr.
func (c *Config) LogConsole() bool {
	return c.Log.Console == nil || *c.Log.Console
}

// GetScanConfig returns the scan configuration with defaults applied.
func (c *Config) GetScanConfig() ScanConfig {
	cfg := c.Scan

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	exts := make([]string, 0, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = []string{".mp3"}
	}
	cfg.Extensions = exts
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	if cfg.FileTimeoutSeconds == nil || *cfg.FileTimeoutSeconds < 0 {
		timeout := DefaultFileTimeoutSeconds
		cfg.FileTimeoutSeconds = &timeout
	}
	if cfg.TagPolicy != scan.TagPolicyArtistAndTitle {
		cfg.TagPolicy = scan.TagPolicyTitleNeedsArtist
	}

	return cfg
}

// FileTimeout returns the per-file deadline; zero means none.
func (s ScanConfig) FileTimeout() time.Duration {
	if s.FileTimeoutSeconds == nil {
		return DefaultFileTimeoutSeconds * time.Second
	}
	return time.Duration(*s.FileTimeoutSeconds) * time.Second
}

// GetAnalyzersConfig returns the analyzer binaries with defaults applied.
func (c *Config) GetAnalyzersConfig() AnalyzersConfig {
	cfg := c.Analyzers

	if cfg.Echoprint == "" {
		cfg.Echoprint = "echoprint-codegen"
	}
	if cfg.Fpcalc == "" {
		cfg.Fpcalc = "fpcalc"
	}
	if cfg.Sox == "" {
		cfg.Sox = "sox"
	}
	if cfg.BPM == "" {
		cfg.BPM = "bpm"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	cfg.Echoprint = expandPath(cfg.Echoprint)
	cfg.Fpcalc = expandPath(cfg.Fpcalc)
	cfg.Sox = expandPath(cfg.Sox)
	cfg.BPM = expandPath(cfg.BPM)

	return cfg
}

// ListenAddr returns the JSON API listen address.
func (c *Config) ListenAddr() string {
	if c.Server.Listen == "" {
		return DefaultListen
	}
	return c.Server.Listen
}
