package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"hostwatch/internal/config"
	"hostwatch/internal/paths"
	"hostwatch/internal/storage"
	"hostwatch/internal/storage/sqlite"
)

// DefaultConfigFile is looked up in the config directory when no --config
// flag is given.
const DefaultConfigFile = "config.yaml"

// App represents the application context
type App struct {
	Storage storage.Storage
	Config  *Config
}

// Config represents application configuration
type Config struct {
	DBPath     string
	ConfigFile string
}

// Options overrides the default locations. Empty fields use the defaults.
type Options struct {
	DBPath     string
	ConfigFile string
}

// New creates a new application instance
func New(opts Options) (*App, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dataDir, err := paths.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath = filepath.Join(dataDir, "hostwatch.db")
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = defaultConfigFile()
	}

	// Initialize storage
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	paths.ChownToRealUser(dbPath)

	return &App{
		Storage: store,
		Config: &Config{
			DBPath:     dbPath,
			ConfigFile: configFile,
		},
	}, nil
}

// defaultConfigFile returns ~/.config/hostwatch/config.yaml when it exists.
func defaultConfigFile() string {
	path, err := paths.ConfigFile(DefaultConfigFile)
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// LoadConfig resolves defaults, then stored settings, then the YAML file.
// Command-line flags are applied on top by the caller.
func (a *App) LoadConfig(ctx context.Context) (config.Config, error) {
	cfg := config.Defaults()

	stored, err := a.Storage.GetAllSettings(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to load settings: %w", err)
	}
	cfg, err = cfg.ApplySettings(stored)
	if err != nil {
		return cfg, fmt.Errorf("stored settings: %w", err)
	}

	if a.Config.ConfigFile == "" {
		return cfg, nil
	}
	cfg, err = cfg.LoadFile(a.Config.ConfigFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config file %s does not exist", a.Config.ConfigFile)
		}
		return cfg, fmt.Errorf("%s: %w", a.Config.ConfigFile, err)
	}
	return cfg, nil
}

// Close closes the application and releases resources
func (a *App) Close() error {
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
