package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Spotify     SpotifyAPIConfig  `toml:"spotify"`
	Analysis    AnalysisConfig    `toml:"analysis"`
	Report      ReportConfig      `toml:"report"`
	Database    DatabaseConfig    `toml:"database"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Valid reports whether both halves of the client credentials are present.
func (c SpotifyConfig) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SpotifyAPIConfig contains transport settings for the Spotify Web API.
type SpotifyAPIConfig struct {
	BaseURL           string  `toml:"base_url"`
	TokenURL          string  `toml:"token_url"`
	BatchLimit        int     `toml:"batch_limit"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	MaxRetries        int     `toml:"max_retries"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// AnalysisConfig selects the playlist and the genre sample to compare.
type AnalysisConfig struct {
	Username   string   `toml:"username"`
	Playlist   string   `toml:"playlist"`
	Genres     []string `toml:"genres"`
	SampleSize int      `toml:"sample_size"`
	Labels     []string `toml:"labels"`
	Strict     bool     `toml:"strict"`
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	Format string `toml:"format"`
	Bins   int    `toml:"bins"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks numeric settings that would otherwise break batching or reporting.
func (c *Config) Validate() error {
	if c.Spotify.BatchLimit < 1 {
		return fmt.Errorf("%w: spotify.batch_limit must be at least 1, got %d", ErrInvalidConfig, c.Spotify.BatchLimit)
	}
	if c.Spotify.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: spotify.requests_per_second must be positive", ErrInvalidConfig)
	}
	if c.Analysis.SampleSize < 0 {
		return fmt.Errorf("%w: analysis.sample_size must not be negative", ErrInvalidConfig)
	}
	if c.Report.Bins < 1 {
		return fmt.Errorf("%w: report.bins must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveConfig loads the config at path when it exists and falls back to defaults otherwise.
// Environment overrides are applied in both cases.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(config, ""); err != nil {
		return nil, err
	}
	return config, nil
}
