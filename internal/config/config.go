// Package config loads the harvest tool configuration from a YAML file and
// environment variables. API credentials never live in the file: the file
// names the environment variable carrying each key, so configs are safe to
// commit.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile    = "harvest.yaml"
	DefaultDataDir       = "data"
	DefaultTimezone      = "Australia/Sydney"
	DefaultZoteroKeyEnv  = "ZOTERO_API_KEY"
	DefaultOmekaKeyEnv   = "OMEKA_API_KEY"
	DefaultGazetteerPath = "data/gazetteer.db"
	DefaultLogLevel      = "info"
)

// Config is the root configuration.
type Config struct {
	Zotero    ZoteroConfig    `yaml:"zotero"`
	Omeka     OmekaConfig     `yaml:"omeka"`
	Gazetteer GazetteerConfig `yaml:"gazetteer"`
	Redis     RedisConfig     `yaml:"redis"`
	Data      DataConfig      `yaml:"data"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Timezone is the fixed zone stamped into provenance records.
	Timezone string `yaml:"timezone"`
}

// ZoteroConfig configures the bibliographic-library source.
type ZoteroConfig struct {
	// GroupID is the group library identifier.
	GroupID string `yaml:"group_id"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the API root (for testing).
	BaseURL string `yaml:"base_url"`
}

// OmekaConfig configures the digital-collection source.
type OmekaConfig struct {
	// BaseURL is the site's API root (e.g., "https://example.org/api").
	BaseURL string `yaml:"base_url"`

	// SiteID identifies the site in cache keys and provenance.
	SiteID string `yaml:"site_id"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// GazetteerConfig locates the embedded place database.
type GazetteerConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the optional response cache.
// An empty address disables caching.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// DataConfig locates output files.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Zotero:    ZoteroConfig{APIKeyEnv: DefaultZoteroKeyEnv},
		Omeka:     OmekaConfig{APIKeyEnv: DefaultOmekaKeyEnv},
		Gazetteer: GazetteerConfig{Path: DefaultGazetteerPath},
		Data:      DataConfig{Dir: DefaultDataDir},
		Logging:   LoggingConfig{Level: DefaultLogLevel},
		Timezone:  DefaultTimezone,
	}
}

// Load reads the configuration file at path, applying defaults for missing
// fields. A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Zotero.APIKeyEnv == "" {
		cfg.Zotero.APIKeyEnv = DefaultZoteroKeyEnv
	}
	if cfg.Omeka.APIKeyEnv == "" {
		cfg.Omeka.APIKeyEnv = DefaultOmekaKeyEnv
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = DefaultDataDir
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	return cfg, nil
}

// ZoteroAPIKey resolves the bibliographic-library credential.
func (c *Config) ZoteroAPIKey() string {
	return os.Getenv(c.Zotero.APIKeyEnv)
}

// OmekaAPIKey resolves the collection-site credential.
func (c *Config) OmekaAPIKey() string {
	return os.Getenv(c.Omeka.APIKeyEnv)
}

// Location resolves the provenance timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("parse timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
