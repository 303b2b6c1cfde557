package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/auth"
	"github.com/desertthunder/fleetroute/internal/gateway"
	"github.com/desertthunder/fleetroute/internal/repositories"
	"github.com/desertthunder/fleetroute/internal/services"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Backend clients are built on first use so commands like `setup config` work without a database or a reachable
// backend.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db       *sql.DB
	ownsDB   bool
	store    *auth.Store
	sessions *repositories.SessionRepository
	plans    *repositories.PlanRepository
	runs     *repositories.RunRepository
	vehicles *services.VehicleService
	routes   *services.RouteService
	places   *services.PlacesService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// DB is used instead of opening Config.Database.Path. The caller keeps ownership.
	DB *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.API.Timeout.Duration}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
}

// SetLogger replaces the logger, e.g. when the TUI takes over the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, vehiclesCommand, placesCommand, planCommand, routeCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	keepCommas(commands)
	return commands
}

// keepCommas stops slice flags from splitting on commas so `--stop lat,lng,address` stays one
// value. The setting is read by every command as it parses, so the whole tree carries it.
func keepCommas(commands []*cli.Command) {
	for _, c := range commands {
		c.DisableSliceFlagSeparator = true
		keepCommas(c.Commands)
	}
}

// database opens and migrates the local database once.
func (r *Runner) database() (*sql.DB, error) {
	if r.plans != nil {
		return r.db, nil
	}

	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, err
		}
		r.db = db
		r.ownsDB = true
	} else if err := shared.RunMigrations(r.db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.sessions = repositories.NewSessionRepository(r.db)
	r.plans = repositories.NewPlanRepository(r.db)
	r.runs = repositories.NewRunRepository(r.db)
	return r.db, nil
}

// connect builds the credential store and backend clients, restoring any saved session.
func (r *Runner) connect() error {
	if r.store != nil {
		return nil
	}
	if _, err := r.database(); err != nil {
		return err
	}

	store, err := auth.NewStore(auth.Options{
		BaseURL:         r.config.Auth.BaseURL,
		HTTPClient:      r.httpClient,
		RefreshInterval: r.config.Auth.RefreshInterval.Duration,
		Persister:       r.sessions,
		Logger:          r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}

	if restored, err := store.Restore(); err != nil {
		r.logger.Warn("ignoring unreadable saved session", "err", err)
	} else if restored {
		r.logger.Debug("using saved session", "user", store.Identity().DisplayName())
	}

	api := gateway.New(r.config.API.BaseURL, store.HTTPClient(), store)
	api.SetLogger(r.logger)
	proxy := gateway.New(r.config.API.ProxyURL, store.HTTPClient(), nil)
	proxy.SetLogger(r.logger)

	r.store = store
	r.vehicles = services.NewVehicleService(api)
	r.routes = services.NewRouteService(api)
	r.places = services.NewPlacesService(proxy)
	return nil
}

// Close stops background work and releases the database.
func (r *Runner) Close() error {
	if r.store != nil {
		r.store.Close()
		r.store = nil
	}
	if r.db != nil && r.ownsDB {
		db := r.db
		r.db, r.plans = nil, nil
		return db.Close()
	}
	return nil
}

// withTimeout bounds a single backend call by the configured API timeout.
func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.config.API.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
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

// decodeJSON is used by commands that accept a JSON body from a flag.
func decodeJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", shared.ErrInvalidArgument, err)
	}
	return nil
}
