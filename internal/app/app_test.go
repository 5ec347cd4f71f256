package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[database]
dsn = "from-file.db"

[log]
level = "warn"
console = false
`), 0o600))

	c := &Context{
		ConfigPath: configPath,
		Overrides: Overrides{
			DatabaseDSN: filepath.Join(dir, "flag.db"),
			LogFile:     filepath.Join(dir, "logs", "progress.log"),
			Debug:       true,
		},
	}
	require.NoError(t, c.Init())
	t.Cleanup(func() { c.Close() })

	assert.Equal(t, filepath.Join(dir, "flag.db"), c.Config.Database.DSN)
	assert.Equal(t, "debug", c.Config.LogLevel())

	c.Logger().Info("hello", "path", "/music/a.mp3")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(filepath.Join(dir, "logs", "progress.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "configuration loaded")
	assert.Contains(t, string(data), "path=/music/a.mp3")

	// Init is idempotent.
	require.NoError(t, c.Init())
}

func TestInit_BadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	c := &Context{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")}
	err := c.Init()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to load configuration"), err.Error())
	assert.NotNil(t, c.Logger())
	assert.NoError(t, c.Close())
}

func TestOpenStore(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	c := &Context{Overrides: Overrides{
		DatabaseDSN: filepath.Join(dir, "data", "bpm.db"),
		LogFile:     filepath.Join(dir, "progress.log"),
	}}
	_, err := c.OpenStore(context.Background())
	require.Error(t, err)

	require.NoError(t, c.Init())
	t.Cleanup(func() { c.Close() })

	s, err := c.OpenStore(context.Background())
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, filepath.Join(dir, "data", "bpm.db"))
}

func TestOpenStore_UnsupportedDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	c := &Context{Overrides: Overrides{
		DatabaseDriver: "postgres",
		DatabaseDSN:    filepath.Join(dir, "bpm.db"),
		LogFile:        filepath.Join(dir, "progress.log"),
	}}
	require.NoError(t, c.Init())
	t.Cleanup(func() { c.Close() })

	_, err := c.OpenStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to open database")
}
