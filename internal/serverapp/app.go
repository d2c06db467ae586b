// Package serverapp wires configuration, observability, the database pool,
// and the schema refresh manager into one HTTP server lifecycle.
package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"bifrost-graphql/internal/config"
	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/logging"
	"bifrost-graphql/internal/observability"
	"bifrost-graphql/internal/schemarefresh"
	"bifrost-graphql/internal/tlscert"
)

// App owns runtime resources for the bifrost-graphql server lifecycle.
type App struct {
	cfg     *config.Config
	logger  *logging.Logger
	dialect dialect.Dialect

	loggerProvider *observability.LoggerProvider

	meterProvider        *observability.MeterProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	tracerProvider       *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	manager      *schemarefresh.Manager
	schemaCancel context.CancelFunc

	graphqlHandler http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server
	tlsManager tlscert.Manager

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper. The configured dialect is resolved
// here so a bad name fails before any resource is acquired.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d, err := dialect.FromName(cfg.Database.Dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database dialect: %w", err)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		dialect: d,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}
