package server

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/ctfkit/ctfkit/logging"
)

const (
	defaultLogDirname  = "logs"
	defaultDatabase    = "ctf.db"
	defaultMetricsPort = uint16(2112)
)

// Config defines the configuration options for the competition server.
//
// See loadConfig in main for the loading+parsing order: defaults, then
// config file, then command line.
type Config struct {
	CtfDir      string  `long:"ctfdir"       description:"The base directory for the database, logs and configuration file"`
	ConfigFile  string  `long:"configfile"   description:"Path to configuration file"                                       short:"c"`
	Database    string  `long:"database"     description:"Path to the SQLite competition database"                          short:"d"`
	LogDir      string  `long:"logdir"       description:"Directory to log output"`
	DebugLog    bool    `long:"debuglog"     description:"Enable debug logs"`
	JSONLog     bool    `long:"jsonlog"      description:"Whether to log in JSON format"`
	MetricsPort *uint16 `long:"metrics-port" description:"The port to expose prometheus metrics"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	ctfDir := "./ctfkit"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		ctfDir = filepath.Join(cacheDir, "ctfkit")
	}

	return &Config{
		CtfDir:   ctfDir,
		Database: filepath.Join(ctfDir, defaultDatabase),
		LogDir:   filepath.Join(ctfDir, defaultLogDirname),
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile overrides cfg with values from the ini config file, when
// one is configured.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}
	return cfg, nil
}

// SetupConfig expands paths and initializes the filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// A non-default base directory moves the files that default to living
	// within it.
	defaultCfg := DefaultConfig()
	if cfg.CtfDir != defaultCfg.CtfDir {
		if cfg.Database == defaultCfg.Database {
			cfg.Database = filepath.Join(cfg.CtfDir, defaultDatabase)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.CtfDir, defaultLogDirname)
		}
	}

	if err := os.MkdirAll(cfg.CtfDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.CtfDir, err)
	}

	cfg.Database = cleanAndExpandPath(cfg.Database)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and a leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
