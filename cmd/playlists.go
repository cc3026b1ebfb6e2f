package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackstats/internal/batch"
	"github.com/desertthunder/trackstats/internal/services"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

const playlistPageSize = 50

// Playlists lists a user's public playlists with their track counts.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized (set client_id and client_secret)", shared.ErrServiceUnavailable)
	}

	user := cmd.String("user")
	if user == "" {
		user = r.config.Analysis.Username
	}
	if user == "" {
		return fmt.Errorf("%w: --user or analysis.username is required", shared.ErrMissingArgument)
	}

	r.logger.Debug("fetching playlists", "user", user)

	playlists, err := batch.Paginate(ctx, playlistPageSize, cmd.Int("limit"), func(ctx context.Context, limit, offset int) ([]services.SimplePlaylist, bool, error) {
		page, err := r.spotify.UserPlaylists(ctx, user, limit, offset)
		if err != nil {
			return nil, false, err
		}
		return page.Items, page.HasNext(), nil
	})
	if err != nil {
		return fmt.Errorf("failed to fetch playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		r.writePlain("No public playlists found for %s\n", user)
		return nil
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %s\n", humanize.Comma(int64(p.Tracks.Total)))
		r.writePlain("\n")
	}

	return nil
}
