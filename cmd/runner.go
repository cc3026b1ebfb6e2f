package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackstats/internal/repositories"
	"github.com/desertthunder/trackstats/internal/services"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.Service
	logger     *log.Logger
	output     io.Writer
	progress   io.Writer
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.Service
	Logger     *log.Logger
	Output     io.Writer
	Progress   io.Writer // Progress lines; defaults to stderr so reports can be piped
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		logger:     opts.Logger,
		output:     opts.Output,
		progress:   opts.Progress,
	}
	r.engine = r.newEngine()
	return r
}

func (r *Runner) newEngine() *tasks.Engine {
	return tasks.NewEngine(r.spotify, tasks.EngineOpts{
		BatchLimit: r.config.Spotify.BatchLimit,
		Strict:     r.config.Analysis.Strict,
		Logger:     r.logger,
	})
}

// Configure runs before every command. It applies the global flags, reloading the
// config when --config is given and connecting to Spotify when credentials are available.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if cmd.IsSet("config") {
		r.configPath = cmd.String("config")
		config, err := shared.ResolveConfig(r.configPath)
		if err != nil {
			return ctx, fmt.Errorf("failed to load config: %w", err)
		}
		r.config = config
		r.spotify = nil
	}

	if r.spotify == nil && r.config.Credentials.Spotify.Valid() {
		svc, err := services.NewSpotifyService(services.SpotifyOptsFromConfig(r.config, r.logger))
		if err != nil {
			return ctx, err
		}
		r.spotify = svc
	}

	r.engine = r.newEngine()
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playlistsCommand, analyzeCommand, exportCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openRuns opens the configured database and returns the run repository with a close func.
func (r *Runner) openRuns() (*repositories.RunRepository, func(), error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
	}
	return repositories.NewRunRepository(db), func() { closeDB(r.logger, db) }, nil
}

func closeDB(logger *log.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
