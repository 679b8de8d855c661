// Package config loads examdesk configuration from YAML with
// environment-variable overrides. Every field has a usable default, so a
// missing config file is a valid all-defaults setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"examdesk/internal/tables"
)

// DefaultFileName is looked up in the data directory when no explicit
// config path is given.
const DefaultFileName = "examdesk.yaml"

// Config holds all examdesk configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig names the flat table files.
type StorageConfig struct {
	// Dir is the data directory holding every table.
	Dir string `yaml:"dir"`

	RosterFile      string `yaml:"roster_file"`
	CredentialsFile string `yaml:"credentials_file"`
	CatalogFile     string `yaml:"catalog_file"`
	RoomsFile       string `yaml:"rooms_file"`

	// PlacementSources, when non-empty, is the declared scan order for
	// placement files. Otherwise PlacementGlob is expanded and sorted.
	PlacementSources []string `yaml:"placement_sources"`
	PlacementGlob    string   `yaml:"placement_glob"`

	// HeaderMode is auto, present or absent.
	HeaderMode string `yaml:"header_mode"`
}

// AuthConfig configures the credential store.
type AuthConfig struct {
	// DefaultSecret authenticates entities that have never set a secret
	// and routes them to first-login.
	DefaultSecret string `yaml:"default_secret"`
	BcryptCost    int    `yaml:"bcrypt_cost"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"` // optional log file, stderr when empty
}

// Default returns the all-defaults configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir:             ".",
			RosterFile:      "students_table.csv",
			CredentialsFile: "credentials_table.csv",
			CatalogFile:     "catalog_table.csv",
			RoomsFile:       "rooms_table.csv",
			PlacementGlob:   "placement_table_*.csv",
			HeaderMode:      string(tables.HeaderAuto),
		},
		Auth: AuthConfig{
			DefaultSecret: "welcome",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, layered over defaults and under
// env overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EXAMDESK_DATA_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("EXAMDESK_DEFAULT_SECRET"); v != "" {
		c.Auth.DefaultSecret = v
	}
	if v := os.Getenv("EXAMDESK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	switch os.Getenv("EXAMDESK_LOG_JSON") {
	case "1", "true":
		c.Logging.JSON = true
	}
}

// Header returns the configured header mode, defaulting to auto for
// unrecognized values.
func (c *Config) Header() tables.HeaderMode {
	switch tables.HeaderMode(c.Storage.HeaderMode) {
	case tables.HeaderPresent:
		return tables.HeaderPresent
	case tables.HeaderAbsent:
		return tables.HeaderAbsent
	default:
		return tables.HeaderAuto
	}
}

func (c *Config) inDir(name string) string {
	return filepath.Join(c.Storage.Dir, name)
}

// RosterPath and friends resolve table files inside the data directory.
func (c *Config) RosterPath() string      { return c.inDir(c.Storage.RosterFile) }
func (c *Config) CredentialsPath() string { return c.inDir(c.Storage.CredentialsFile) }
func (c *Config) CatalogPath() string     { return c.inDir(c.Storage.CatalogFile) }
func (c *Config) RoomsPath() string       { return c.inDir(c.Storage.RoomsFile) }
