// Package app provides the application context and dependency management
// for the registrar CLI. It centralizes configuration, logging and the
// catalog connection so commands receive them instead of building their own.
package app

import (
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/registrar/internal/transport"
	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/reconciler"
)

// App represents the registrar application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	stdout io.Writer
	stderr io.Writer

	// Catalog connection (lazy-initialized, singleton)
	mu      sync.Mutex
	catalog reconciler.Catalog
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment and can be replaced with
// functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Catalog returns the catalog connection, creating it from the configuration
// on first use.
func (a *App) Catalog() (reconciler.Catalog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.catalog != nil {
		return a.catalog, nil
	}

	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	c, err := catalog.NewWithAPIKey(a.config.APIURL, a.config.APIKey,
		transport.WithHTTPClient(&http.Client{Timeout: a.config.Timeout}))
	if err != nil {
		return nil, err
	}

	a.catalog = c
	return c, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return errors.NewValidationError("config", nil, "cannot be nil")
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithCatalog sets the catalog connection (useful for testing).
func WithCatalog(c reconciler.Catalog) Option {
	return func(a *App) error {
		a.catalog = c
		return nil
	}
}

// WithOutput redirects command output and user-facing warnings.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) error {
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
		return nil
	}
}
