package main

import (
	"context"
	"os"

	"github.com/desertthunder/trackstats/internal/services"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	var spotifyService services.Service

	config, err := shared.ResolveConfig(defaultConfigPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}

	if config.Credentials.Spotify.Valid() {
		if svc, err := services.NewSpotifyService(services.SpotifyOptsFromConfig(config, logger)); err == nil {
			spotifyService = svc
		} else {
			logger.Warn("failed to create Spotify service", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotifyService,
		Logger:  logger,
	})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "trackstats",
		Usage:    "Compare the audio features of a Spotify playlist with a genre sample",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Before:   r.Configure,
		Commands: r.register(),
	}
}
