//nolint:goconst // test cases intentionally repeat strings for readability
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/adrg/xdg"

	"github.com/llehouerou/bpmdata/internal/scan"
	"github.com/llehouerou/bpmdata/internal/store"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "tilde expands to home",
			input:    "~/music",
			expected: filepath.Join(home, "music"),
		},
		{
			name:     "absolute path unchanged",
			input:    "/usr/local/bin/fpcalc",
			expected: "/usr/local/bin/fpcalc",
		},
		{
			name:     "bare binary name unchanged",
			input:    "echoprint-codegen",
			expected: "echoprint-codegen",
		},
		{
			name:     "empty string unchanged",
			input:    "",
			expected: "",
		},
		{
			name:     "tilde only",
			input:    "~",
			expected: home,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if result != tt.expected {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetConfigPaths(t *testing.T) {
	paths := getConfigPaths()

	if len(paths) != 2 {
		t.Fatalf("getConfigPaths() returned %d paths, want 2", len(paths))
	}

	expectedFirst := filepath.Join(xdg.ConfigHome, "bpmdata", "config.toml")
	if paths[0] != expectedFirst {
		t.Errorf("first config path = %q, want %q", paths[0], expectedFirst)
	}

	// Last path should be local config.toml
	if paths[1] != "config.toml" {
		t.Errorf("last config path = %q, want %q", paths[1], "config.toml")
	}
}

func TestGetScanConfig_Defaults(t *testing.T) {
	cfg := (&Config{}).GetScanConfig()

	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want %d", cfg.Workers, runtime.NumCPU())
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != ".mp3" {
		t.Errorf("Extensions = %v, want [.mp3]", cfg.Extensions)
	}
	if cfg.MaxFileSize != 50_000_000 {
		t.Errorf("MaxFileSize = %d, want 50000000", cfg.MaxFileSize)
	}
	if cfg.MaxDurationSeconds != 1800 {
		t.Errorf("MaxDurationSeconds = %v, want 1800", cfg.MaxDurationSeconds)
	}
	if cfg.FileTimeout() != 300*time.Second {
		t.Errorf("FileTimeout() = %v, want 5m", cfg.FileTimeout())
	}
	if cfg.TagPolicy != scan.TagPolicyTitleNeedsArtist {
		t.Errorf("TagPolicy = %q, want %q", cfg.TagPolicy, scan.TagPolicyTitleNeedsArtist)
	}
	if cfg.RequireTempo {
		t.Error("RequireTempo should default to false")
	}
}

func TestGetScanConfig_CustomValues(t *testing.T) {
	timeout := 0
	c := &Config{
		Scan: ScanConfig{
			Workers:            3,
			Extensions:         []string{"MP3", ".Flac", " "},
			MaxFileSize:        1024,
			MaxDurationSeconds: 60,
			FileTimeoutSeconds: &timeout,
			TagPolicy:          scan.TagPolicyArtistAndTitle,
		},
	}

	cfg := c.GetScanConfig()

	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	want := []string{".mp3", ".flac"}
	if len(cfg.Extensions) != len(want) {
		t.Fatalf("Extensions = %v, want %v", cfg.Extensions, want)
	}
	for i := range want {
		if cfg.Extensions[i] != want[i] {
			t.Errorf("Extensions[%d] = %q, want %q", i, cfg.Extensions[i], want[i])
		}
	}
	if cfg.FileTimeout() != 0 {
		t.Errorf("FileTimeout() = %v, want 0 (disabled)", cfg.FileTimeout())
	}
	if cfg.TagPolicy != scan.TagPolicyArtistAndTitle {
		t.Errorf("TagPolicy = %q, want %q", cfg.TagPolicy, scan.TagPolicyArtistAndTitle)
	}

	// The receiver must not be modified by normalization.
	if c.Scan.Extensions[0] != "MP3" {
		t.Errorf("source extensions mutated: %v", c.Scan.Extensions)
	}
}

func TestGetScanConfig_UnknownTagPolicy(t *testing.T) {
	c := &Config{Scan: ScanConfig{TagPolicy: "whatever"}}
	if got := c.GetScanConfig().TagPolicy; got != scan.TagPolicyTitleNeedsArtist {
		t.Errorf("TagPolicy = %q, want %q", got, scan.TagPolicyTitleNeedsArtist)
	}
}

func TestGetAnalyzersConfig_Defaults(t *testing.T) {
	cfg := (&Config{}).GetAnalyzersConfig()

	if cfg.Echoprint != "echoprint-codegen" {
		t.Errorf("Echoprint = %q", cfg.Echoprint)
	}
	if cfg.Fpcalc != "fpcalc" {
		t.Errorf("Fpcalc = %q", cfg.Fpcalc)
	}
	if cfg.Sox != "sox" || cfg.BPM != "bpm" {
		t.Errorf("Sox/BPM = %q/%q", cfg.Sox, cfg.BPM)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
}

func TestDatabaseDriver(t *testing.T) {
	tests := []struct {
		driver   string
		expected string
	}{
		{"", store.DriverSQLite},
		{"SQLite", store.DriverSQLite},
		{" mysql ", store.DriverMySQL},
	}
	for _, tt := range tests {
		c := &Config{Database: DatabaseConfig{Driver: tt.driver}}
		if got := c.DatabaseDriver(); got != tt.expected {
			t.Errorf("DatabaseDriver(%q) = %q, want %q", tt.driver, got, tt.expected)
		}
	}
}

func TestLogDefaults(t *testing.T) {
	c := &Config{}
	if c.LogLevel() != "info" {
		t.Errorf("LogLevel() = %q, want info", c.LogLevel())
	}
	if !c.LogConsole() {
		t.Error("LogConsole() should default to true")
	}
	off := false
	c.Log.Console = &off
	if c.LogConsole() {
		t.Error("LogConsole() should honour console = false")
	}
	if c.ListenAddr() != DefaultListen {
		t.Errorf("ListenAddr() = %q", c.ListenAddr())
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.WriteFile("config.toml", []byte(""), 0o600); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	configContent := `
[database]
driver = "sqlite"
dsn = "scan.db"

[scan]
workers = 2
solo = true
extensions = [".mp3", ".flac"]
max_file_size = 1000
file_timeout_seconds = 10
tag_policy = "artist-and-title"
require_tempo = true

[analyzers]
fpcalc = "/opt/chromaprint/fpcalc"
sample_rate = 22050

[musicbrainz]
base_url = "http://mb.local/ws/2"

[log]
file = "scan.log"
level = "DEBUG"
console = false
`
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte(configContent), 0o600); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sc := cfg.GetScanConfig()
	if sc.Workers != 2 || !sc.Solo {
		t.Errorf("Workers/Solo = %d/%v, want 2/true", sc.Workers, sc.Solo)
	}
	if len(sc.Extensions) != 2 {
		t.Errorf("Extensions = %v", sc.Extensions)
	}
	if sc.MaxFileSize != 1000 {
		t.Errorf("MaxFileSize = %d, want 1000", sc.MaxFileSize)
	}
	if sc.FileTimeout() != 10*time.Second {
		t.Errorf("FileTimeout() = %v, want 10s", sc.FileTimeout())
	}
	if sc.TagPolicy != scan.TagPolicyArtistAndTitle || !sc.RequireTempo {
		t.Errorf("TagPolicy/RequireTempo = %q/%v", sc.TagPolicy, sc.RequireTempo)
	}

	analyzers := cfg.GetAnalyzersConfig()
	if analyzers.Fpcalc != "/opt/chromaprint/fpcalc" {
		t.Errorf("Fpcalc = %q", analyzers.Fpcalc)
	}
	if analyzers.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", analyzers.SampleRate)
	}

	if cfg.MusicBrainz.BaseURL != "http://mb.local/ws/2" {
		t.Errorf("MusicBrainz.BaseURL = %q", cfg.MusicBrainz.BaseURL)
	}

	dsn, err := cfg.DatabaseDSN()
	if err != nil || dsn != "sc.db" {
		t.Errorf("DatabaseDSN() = %q, %v", dsn, err)
	}
	logFile, err := cfg.LogFile()
	if err != nil || logFile != "sc.log" {
		t.Errorf("LogFile() = %q, %v", logFile, err)
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	if cfg.LogConsole() {
		t.Error("LogConsole() = true, want false")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() expected error for missing explicit config")
	}
}

func TestLoad_InvalidToml(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.WriteFile("config.toml", []byte("invalid toml [[["), 0o600); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	if _, err := Load(""); err == nil {
		t.Error("Load() expected error for invalid TOML, got nil")
	}
}

func TestLoad_PathExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}
	t.Chdir(t.TempDir())

	configContent := `
[database]
dsn = "~/data/bpm.db"

[log]
file = "~/logs/progress.log"
`
	if err := os.WriteFile("config.toml", []byte(configContent), 0o600); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(home, "data", "bpm.db"); cfg.Database.DSN != want {
		t.Errorf("Database.DSN = %q, want %q", cfg.Database.DSN, want)
	}
	if want := filepath.Join(home, "logs", "progress.log"); cfg.Log.File != want {
		t.Errorf("Log.File = %q, want %q", cfg.Log.File, want)
	}
}
