// Package schemarefresh keeps the served GraphQL schema aligned with the
// database. A Manager owns an immutable snapshot (model, schema, handler)
// and swaps in a freshly built one when the catalog or the metadata
// annotations change; requests already in flight keep the snapshot they
// started with.
package schemarefresh

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/logging"
	"bifrost-graphql/internal/metadata"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/naming"
	"bifrost-graphql/internal/observability"
	"bifrost-graphql/internal/resolver"
	"bifrost-graphql/internal/schemareader"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
)

// Snapshot is an immutable view of one schema build.
type Snapshot struct {
	Model       *model.Model
	Schema      *graphql.Schema
	Handler     http.Handler
	BuiltAt     time.Time
	Fingerprint string
	Components  map[string]string
}

// Config controls snapshot building and refresh behavior.
type Config struct {
	DB      *sql.DB
	Dialect dialect.Dialect

	// MetadataFile is an optional sidecar annotation file.
	MetadataFile string
	// MetadataTable names the in-database annotation table. Empty disables
	// the table source.
	MetadataTable string

	Naming        naming.Config
	SyncDepth     int
	DeleteOrphans bool
	// QueryTimeout bounds each SQL statement the resolver issues.
	QueryTimeout time.Duration
	GraphiQL     bool

	// Interval between background refresh polls. Zero or negative disables
	// the loop; the startup snapshot still serves.
	Interval time.Duration

	Logger  *logging.Logger
	Metrics *observability.SchemaRefreshMetrics
}

// Manager maintains the active snapshot and refreshes it in the background.
type Manager struct {
	db            *sql.DB
	dialect       dialect.Dialect
	reader        schemareader.Reader
	metadataFile  string
	metadataTable string
	namingConfig  naming.Config
	syncDepth     int
	deleteOrphans bool
	queryTimeout  time.Duration
	graphiQL      bool
	interval      time.Duration
	logger        *logging.Logger
	metrics       *observability.SchemaRefreshMetrics
	active        atomic.Value // *Snapshot
	wg            sync.WaitGroup
}

// refreshInputs carries one coherent read of everything a build consumes.
type refreshInputs struct {
	data        *schemareader.SchemaData
	bundle      *metadata.Bundle
	fingerprint string
	components  map[string]string
}

// NewManager reads the database once and builds the initial snapshot.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("schema refresh manager requires a database handle")
	}
	if cfg.Dialect == nil {
		return nil, fmt.Errorf("schema refresh manager requires a dialect")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	reader, err := schemareader.New(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		db:            cfg.DB,
		dialect:       cfg.Dialect,
		reader:        reader,
		metadataFile:  cfg.MetadataFile,
		metadataTable: cfg.MetadataTable,
		namingConfig:  cfg.Naming,
		syncDepth:     cfg.SyncDepth,
		deleteOrphans: cfg.DeleteOrphans,
		queryTimeout:  cfg.QueryTimeout,
		graphiQL:      cfg.GraphiQL,
		interval:      cfg.Interval,
		logger:        cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:       cfg.Metrics,
	}

	start := time.Now()
	inputs, err := m.readInputs(ctx)
	if err != nil {
		m.recordRefresh(time.Since(start), false, "startup")
		return nil, err
	}
	snapshot, err := m.buildSnapshot(inputs)
	if err != nil {
		m.recordRefresh(time.Since(start), false, "startup")
		return nil, err
	}
	m.active.Store(snapshot)
	m.recordRefresh(time.Since(start), true, "startup")

	return m, nil
}

// Start begins the background refresh loop. A zero interval disables it.
func (m *Manager) Start(ctx context.Context) {
	if m.interval <= 0 {
		m.logger.Info("schema refresh disabled")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// Handler returns a stable handler that always serves the current snapshot.
// A swap becomes visible on the next request; in-flight requests finish on
// the snapshot they started with.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot := m.CurrentSnapshot()
		if snapshot == nil || snapshot.Handler == nil {
			http.Error(w, "schema not ready", http.StatusServiceUnavailable)
			return
		}
		snapshot.Handler.ServeHTTP(w, r)
	})
}

// CurrentSnapshot returns the active snapshot, nil before the first build.
func (m *Manager) CurrentSnapshot() *Snapshot {
	if value := m.active.Load(); value != nil {
		if snapshot, ok := value.(*Snapshot); ok {
			return snapshot
		}
	}
	return nil
}

// RefreshNow forces a rebuild and swap regardless of fingerprint state.
func (m *Manager) RefreshNow() error {
	return m.RefreshNowContext(context.Background())
}

// RefreshNowContext forces a rebuild and swap with context support.
func (m *Manager) RefreshNowContext(ctx context.Context) error {
	start := time.Now()
	inputs, err := m.readInputs(ctx)
	if err != nil {
		m.recordRefresh(time.Since(start), false, "manual")
		return err
	}

	snapshot, err := m.buildSnapshot(inputs)
	if err != nil {
		m.recordRefresh(time.Since(start), false, "manual")
		return err
	}

	m.active.Store(snapshot)
	m.recordRefresh(time.Since(start), true, "manual")
	return nil
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-ticker.C:
			m.refreshOnce(ctx)
		}
	}
}

func (m *Manager) refreshOnce(ctx context.Context) {
	start := time.Now()
	inputs, err := m.readInputs(ctx)
	if err != nil {
		m.logger.Warn("schema refresh read failed", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, "poll")
		return
	}

	current := m.CurrentSnapshot()
	if current != nil && inputs.fingerprint == current.Fingerprint {
		m.recordRefresh(time.Since(start), true, "poll_no_change")
		return
	}

	// Component-level diff keeps refresh logs actionable: operators can see
	// whether a rebuild came from catalog changes or from annotation edits.
	changed := changedFingerprintComponents(currentComponents(current), inputs.components)
	m.logger.Info("schema change detected, rebuilding",
		slog.String("fingerprint", inputs.fingerprint),
		slog.Any("changed_components", changed),
	)

	snapshot, err := m.buildSnapshot(inputs)
	if err != nil {
		m.logger.Error("failed to rebuild schema", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, "poll")
		return
	}

	m.active.Store(snapshot)
	m.recordRefresh(time.Since(start), true, "poll")
	m.logger.Info("schema refresh complete",
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Int("tables", len(snapshot.Model.Tables())),
	)
}

// readInputs performs one read of the catalog and the annotation sources and
// fingerprints the result. The same read feeds the build, so the fingerprint
// and the snapshot it guards can never disagree.
func (m *Manager) readInputs(ctx context.Context) (*refreshInputs, error) {
	data, err := m.reader.ReadSchema(ctx, m.db)
	if err != nil {
		return nil, fmt.Errorf("introspecting %s catalog: %w", m.dialect.Name(), err)
	}

	var bundle *metadata.Bundle
	if m.metadataTable != "" {
		bundle, err = metadata.Load(ctx, m.metadataFile, m.db, m.dialect, m.metadataTable)
	} else {
		bundle, err = metadata.Load(ctx, m.metadataFile, nil, m.dialect, "")
	}
	if err != nil {
		return nil, err
	}

	components := map[string]string{
		componentCatalog:     hashSchemaData(data),
		componentAnnotations: bundle.Checksum(),
	}
	return &refreshInputs{
		data:        data,
		bundle:      bundle,
		fingerprint: combineComponentHashes(components),
		components:  components,
	}, nil
}

func (m *Manager) buildSnapshot(inputs *refreshInputs) (*Snapshot, error) {
	start := time.Now()

	for _, warn := range inputs.bundle.Validate() {
		m.logger.Warn("metadata annotation issue", slog.String("warning", warn))
	}

	namer := naming.New(m.namingConfig, m.logger.Logger)
	mdl, err := model.Build(inputs.data, m.dialect, inputs.bundle, namer, m.logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("building model: %w", err)
	}

	res, err := resolver.New(m.db, mdl, resolver.Options{
		SyncDepth:     m.syncDepth,
		DeleteOrphans: m.deleteOrphans,
		QueryTimeout:  m.queryTimeout,
		Logger:        m.logger.Logger,
	})
	if err != nil {
		return nil, err
	}
	schema, err := res.Schema()
	if err != nil {
		return nil, fmt.Errorf("building GraphQL schema: %w", err)
	}

	graphqlHandler := handler.New(&handler.Config{
		Schema:     &schema,
		Pretty:     true,
		GraphiQL:   m.graphiQL,
		Playground: true,
	})

	m.logger.Info("schema snapshot built",
		slog.Int("tables", len(mdl.Tables())),
		slog.Duration("duration", time.Since(start)),
	)

	return &Snapshot{
		Model:       mdl,
		Schema:      &schema,
		Handler:     graphqlHandler,
		BuiltAt:     time.Now(),
		Fingerprint: inputs.fingerprint,
		Components:  inputs.components,
	}, nil
}

func (m *Manager) recordRefresh(duration time.Duration, success bool, trigger string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(context.Background(), duration, success, trigger)
}

func currentComponents(snapshot *Snapshot) map[string]string {
	if snapshot == nil {
		return nil
	}
	return snapshot.Components
}
