// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const defaultConfigPath = "config.toml"

// globalFlags are shared by every command through the root command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

// setupCommand initializes configuration and storage
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the bundled example",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the run history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// playlistsCommand lists a user's public playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List a user's public Spotify playlists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Spotify user ID (default: analysis.username)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to return (0 for all)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Playlists,
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Owner of the playlist (default: analysis.username)",
		},
		&cli.StringFlag{
			Name:    "playlist",
			Aliases: []string{"p"},
			Usage:   "Playlist name, matched exactly (default: analysis.playlist)",
		},
		&cli.StringSliceFlag{
			Name:    "genre",
			Aliases: []string{"g"},
			Usage:   "Genre to sample, repeatable (default: analysis.genres)",
		},
		&cli.IntFlag{
			Name:    "sample-size",
			Aliases: []string{"n"},
			Usage:   "Tracks sampled per genre, in pages of 50 (default: analysis.sample_size)",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Fail when Spotify drops ids from a batch lookup",
		},
	}
}

// analyzeCommand runs the playlist vs. genre sample report
func analyzeCommand(r *Runner) *cli.Command {
	flags := append(sourceFlags(),
		&cli.StringSliceFlag{
			Name:  "label",
			Usage: "Display labels for playlist and sample, in that order",
		},
		&cli.IntFlag{
			Name:  "bins",
			Usage: "Histogram bins (default: report.bins)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: text, markdown or json (default: report.format)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the report to a file instead of stdout",
		},
		&cli.StringFlag{
			Name:  "export-dir",
			Usage: "Also export the enriched tables as CSV into this directory",
		},
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Save the report summary to the run history",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Run history label (default: the data set labels)",
		},
	)

	return &cli.Command{
		Name:   "analyze",
		Usage:  "Compare a playlist with a genre sample and print a report",
		Flags:  flags,
		Action: r.Analyze,
	}
}

// exportCommand writes one enriched table as CSV
func exportCommand(r *Runner) *cli.Command {
	flags := append(sourceFlags(),
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "Table to export: playlist or sample",
			Value:   "playlist",
		},
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    "CSV output path; metadata is written next to it",
			Required: true,
		},
	)

	return &cli.Command{
		Name:   "export",
		Usage:  "Export the enriched playlist or sample table as CSV",
		Flags:  flags,
		Action: r.Export,
	}
}

// historyCommand manages saved runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"runs"},
		Usage:   "Manage saved report runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only runs of this source: playlist, sample or compare",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Print a saved report by ID or number",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format: text, markdown or json",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "rename",
				Usage: "Change the label of a saved run",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "label"},
				},
				Action: r.HistoryRename,
			},
			{
				Name:  "delete",
				Usage: "Delete a saved run",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}
