// Package app holds the state shared by the CLI commands: the loaded
// configuration, the process logger and the flag overrides applied to them.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/llehouerou/bpmdata/internal/config"
	"github.com/llehouerou/bpmdata/internal/errmsg"
	"github.com/llehouerou/bpmdata/internal/logging"
	"github.com/llehouerou/bpmdata/internal/store"
)

// Overrides are command-line values that take precedence over the config
// file. Empty fields leave the file value in place.
type Overrides struct {
	DatabaseDriver string
	DatabaseDSN    string
	LogFile        string
	LogLevel       string
	Debug          bool
}

// Context is created once by main and handed to every command.
type Context struct {
	ConfigPath string
	Overrides  Overrides
	// Progress is set by commands that draw to the terminal; the console
	// log mirror is then limited to warnings and errors.
	Progress bool

	Config *config.Config
	logs   *logging.Output
}

// Init loads the configuration and opens the logger. It is safe to call
// more than once; later calls are no-ops.
func (c *Context) Init() error {
	if c.Config != nil {
		return nil
	}

	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return errmsg.Error(errmsg.OpConfigLoad, err)
	}
	c.apply(cfg)

	logFile, err := cfg.LogFile()
	if err != nil {
		return errmsg.Error(errmsg.OpLogOpen, err)
	}
	logCfg := logging.Config{
		File:    logFile,
		Level:   cfg.LogLevel(),
		Console: cfg.LogConsole(),
	}
	if c.Progress {
		logCfg.ConsoleLevel = "warn"
	}
	logs, err := logging.Open(logCfg)
	if err != nil {
		return errmsg.Error(errmsg.OpLogOpen, err)
	}

	c.Config = cfg
	c.logs = logs
	c.Logger().Debug("configuration loaded",
		"config", c.ConfigPath,
		"db_driver", cfg.DatabaseDriver(),
		"log_file", logFile,
	)
	return nil
}

func (c *Context) apply(cfg *config.Config) {
	o := c.Overrides
	if o.DatabaseDriver != "" {
		cfg.Database.Driver = o.DatabaseDriver
	}
	if o.DatabaseDSN != "" {
		cfg.Database.DSN = o.DatabaseDSN
	}
	if o.LogFile != "" {
		cfg.Log.File = o.LogFile
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Debug {
		cfg.Log.Level = "debug"
	}
}

// Logger returns the process logger, or a discarding logger before Init.
func (c *Context) Logger() *slog.Logger {
	if c.logs == nil || c.logs.Logger == nil {
		return logging.Discard()
	}
	return c.logs.Logger
}

// OpenStore opens the configured record store.
func (c *Context) OpenStore(ctx context.Context) (*store.Store, error) {
	if c.Config == nil {
		return nil, errors.New("app: context not initialised")
	}
	dsn, err := c.Config.DatabaseDSN()
	if err != nil {
		return nil, errmsg.Error(errmsg.OpStoreOpen, err)
	}
	s, err := store.Open(ctx, c.Config.DatabaseDriver(), dsn)
	if err != nil {
		return nil, errmsg.Error(errmsg.OpStoreOpen, err)
	}
	return s, nil
}

// Close flushes and closes the log file.
func (c *Context) Close() error {
	return c.logs.Close()
}
