package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvUsername     = "SPOTIFY_USERNAME"
)

// ApplyEnv loads the dotenv file at path (".env" when empty) if it exists and
// overrides credentials in config with any SPOTIFY_* variables found in the environment.
//
// Variables already present in the process environment win over the file.
func ApplyEnv(config *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, path, err)
	}

	if v := os.Getenv(EnvClientID); v != "" {
		config.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		config.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		config.Analysis.Username = v
	}
	return nil
}
