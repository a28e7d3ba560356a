// Package pipeline evaluates texture pipeline coverage and runs the
// declarative validation checks the profile document describes.
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pipeline describes one texture workflow profile.
type Pipeline struct {
	Title            string      `yaml:"title"`
	RequiredChannels []string    `yaml:"required_channels"`
	OptionalChannels []string    `yaml:"optional_channels"`
	PackedMaps       []PackedMap `yaml:"packed_maps"`
}

// PackedMap describes a multi-channel texture such as an ORM map.
type PackedMap struct {
	Token    string   `yaml:"token"`
	Channels []string `yaml:"channels"`
}

// NamingRules carries the regular expressions for file naming checks.
type NamingRules struct {
	ModelPattern   string `yaml:"model_pattern"`
	TexturePattern string `yaml:"texture_pattern"`
}

// Limits carries the numeric thresholds for warning-level checks.
type Limits struct {
	MaxPolycountWarning  int     `yaml:"max_polycount_warning"`
	MaxTextureSizeMB     float64 `yaml:"max_texture_size_mb"`
	MaxTextureResolution int     `yaml:"max_texture_resolution"`
}

// Formats lists the allowed file extensions (without dots).
type Formats struct {
	Model   []string `yaml:"model"`
	Texture []string `yaml:"texture"`
}

// Validation groups the declarative check configuration.
type Validation struct {
	Naming  NamingRules `yaml:"naming"`
	Limits  Limits      `yaml:"limits"`
	Formats Formats     `yaml:"formats"`
}

// UDIM configures tile-set detection.
type UDIM struct {
	Enabled bool   `yaml:"enabled"`
	Pattern string `yaml:"pattern"`
}

// Events configures which audit event types the validation panel shows.
type Events struct {
	Show []string `yaml:"show"`
}

// Config is the parsed profile document.
type Config struct {
	Version    int                 `yaml:"version"`
	Pipelines  map[string]Pipeline `yaml:"pipelines"`
	Validation Validation          `yaml:"validation"`
	UDIM       UDIM                `yaml:"udim"`
	Events     Events              `yaml:"events"`
}

// Empty returns a config with no pipelines and no checks, used when the
// profile document cannot be parsed.
func Empty() *Config {
	return &Config{Pipelines: map[string]Pipeline{}}
}

// ConfigError reports a profile document that failed to parse. The
// validator keeps running with an empty configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline profile %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Parse decodes a profile document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Pipelines == nil {
		cfg.Pipelines = map[string]Pipeline{}
	}
	return &cfg, nil
}

// Load reads and parses the profile document at path. On any failure it
// returns an empty config alongside a ConfigError so callers can surface
// the message and keep going.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), &ConfigError{Path: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return Empty(), &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}
