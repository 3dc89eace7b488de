package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/auth"
	"github.com/desertthunder/plmigrate/internal/repositories"
	"github.com/desertthunder/plmigrate/internal/services"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/desertthunder/plmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store, catalogs and controller are wired lazily so commands such as setup work before the
// database exists.
type Runner struct {
	configPath string
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader

	store       repositories.Backend
	ownsStore   bool
	provider    *auth.Provider
	credentials tasks.CredentialSource
	source      services.SourceCatalog
	target      services.TargetCatalog
	controller  *tasks.Controller
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store, Source, Target and Credentials are optional overrides, mainly for tests.
type RunnerOpts struct {
	ConfigPath  string
	Config      *shared.Config
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Input       io.Reader
	Store       repositories.Backend
	Source      services.SourceCatalog
	Target      services.TargetCatalog
	Credentials tasks.CredentialSource
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		configPath:  opts.ConfigPath,
		config:      opts.Config,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		store:       opts.Store,
		source:      opts.Source,
		target:      opts.Target,
		credentials: opts.Credentials,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, migrateCommand, statusCommand, syncCommand,
		resetCommand, thresholdCommand, reportCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by the global --config flag.
//
// A missing file is not an error: defaults apply until `plmigrate setup` writes one.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	} else {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	shared.SetLogLevel(r.logger, r.config.Log.Level)
	return ctx, nil
}

// After releases the database handle, if one was opened.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close releases the database handle opened by the runner. An injected store is left to its owner.
func (r *Runner) Close() error {
	if r.store == nil || !r.ownsStore {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	r.provider = nil
	r.controller = nil
	return err
}

// SetLogger replaces the logger used by the runner and everything it wires afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	shared.SetLogLevel(l, r.config.Log.Level)
	r.logger = l
}

func (r *Runner) openStore() (repositories.Backend, error) {
	if r.store != nil {
		return r.store, nil
	}

	store, err := repositories.Open(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.store, r.ownsStore = store, true
	return store, nil
}

func (r *Runner) authProvider() (*auth.Provider, error) {
	if r.provider != nil {
		return r.provider, nil
	}

	store, err := r.openStore()
	if err != nil {
		return nil, err
	}
	r.provider = auth.NewProvider(
		store,
		auth.NewOAuthRefresher(r.config.Credentials),
		auth.WithLogger(shared.WithLogger(r.logger, "component", "auth")),
	)
	return r.provider, nil
}

// wire builds the controller and everything beneath it.
func (r *Runner) wire() (*tasks.Controller, error) {
	if r.controller != nil {
		return r.controller, nil
	}

	store, err := r.openStore()
	if err != nil {
		return nil, err
	}
	provider, err := r.authProvider()
	if err != nil {
		return nil, err
	}
	creds := r.credentials
	if creds == nil {
		creds = provider
	}

	clientOpts := []services.ClientOption{
		services.WithHTTPClient(r.httpClient),
		services.WithLogger(shared.WithLogger(r.logger, "component", "catalog")),
	}
	if r.source == nil {
		r.source = services.NewSpotifyService(r.config.Credentials.Spotify, r.config.Migration, clientOpts...)
	}
	if r.target == nil {
		r.target = services.NewYouTubeService(r.config.Credentials.YouTube, r.config.Migration, clientOpts...)
	}

	migrator := tasks.NewMigrator(tasks.Deps{
		Source:      r.source,
		Target:      r.target,
		Store:       store,
		Config:      store,
		Credentials: creds,
	}, r.config.Migration, tasks.WithLogger(shared.WithLogger(r.logger, "component", "migrator")))

	r.controller = tasks.NewController(migrator)
	return r.controller, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
