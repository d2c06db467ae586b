// Package resolver executes GraphQL requests against the introspected model.
// It builds the query IR from each request's arguments and selection set,
// runs the policy transformer chain, translates the IR to parameterized SQL,
// executes every emitted statement, and stitches bulk-loaded child rows back
// into their parent rows. Mutations diff submitted trees through the sync
// engine and run the resulting operation list inside one transaction.
package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bifrost-graphql/internal/dbexec"
	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/gqlschema"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/observability"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/sqltype"
	"bifrost-graphql/internal/transform"
	"bifrost-graphql/internal/translate"
	"bifrost-graphql/internal/treesync"
	"bifrost-graphql/internal/usercontext"
	"bifrost-graphql/internal/uuidutil"
)

// Resolver implements gqlschema.Binder over a live connection pool.
type Resolver struct {
	db        *sql.DB
	model     *model.Model
	dialect   dialect.Dialect
	queries   *transform.QueryTransformerService
	mutations *transform.MutationTransformerService
	engine    *treesync.Engine
	executor  *treesync.Executor
	timeout   time.Duration
	logger    *slog.Logger
}

// Options tunes resolver behavior beyond what the model carries.
type Options struct {
	// SyncDepth bounds nested mutation descent; zero means
	// treesync.DefaultMaxDepth.
	SyncDepth int
	// DeleteOrphans removes existing child rows a submitted tree no longer
	// contains.
	DeleteOrphans bool
	// QueryTimeout bounds each SQL statement; zero disables the deadline.
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

// New builds a resolver. The pool must be opened with a driver matching the
// model's dialect.
func New(db *sql.DB, m *model.Model, opts Options) (*Resolver, error) {
	depth := opts.SyncDepth
	if depth == 0 {
		depth = treesync.DefaultMaxDepth
	}
	engine, err := treesync.NewEngine(depth, opts.DeleteOrphans)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mutations := transform.DefaultMutationTransformers()
	return &Resolver{
		db:        db,
		model:     m,
		dialect:   m.Dialect,
		queries:   transform.DefaultQueryTransformers(),
		mutations: mutations,
		engine:    engine,
		executor:  treesync.NewExecutor(m.Dialect, mutations),
		timeout:   opts.QueryTimeout,
		logger:    logger,
	}, nil
}

// Schema builds the executable GraphQL schema bound to this resolver.
func (r *Resolver) Schema() (graphql.Schema, error) {
	return gqlschema.NewBuilder(r.model, r).Build()
}

// ResolveList answers a root list field: rows of one table with nested link
// collections stitched in.
func (r *Resolver) ResolveList(p graphql.ResolveParams, t *model.Table) (out interface{}, err error) {
	ctx, span := startSpan(p.Context, "resolver.list", t.SchemaQualifiedName())
	defer func() { finishSpan(span, err) }()

	b := newRequestBuilder(r, p)
	q, err := b.listQuery(t, p.Args)
	if err != nil {
		return nil, err
	}
	return r.runQuery(ctx, q, b.uctx)
}

// ResolveAggregate answers a _agg field with the count over the same
// filtered set the list field would return.
func (r *Resolver) ResolveAggregate(p graphql.ResolveParams, t *model.Table) (out interface{}, err error) {
	ctx, span := startSpan(p.Context, "resolver.aggregate", t.SchemaQualifiedName())
	defer func() { finishSpan(span, err) }()

	b := newRequestBuilder(r, p)
	q, err := b.aggregateQuery(t, p.Args)
	if err != nil {
		return nil, err
	}
	rows, err := r.runQuery(ctx, q, b.uctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{"count": 0}, nil
	}
	return rows[0], nil
}

// runQuery applies the transformer chain, translates the tree, and executes
// every emitted statement. The returned root rows carry child rows under
// their link field names.
func (r *Resolver) runQuery(ctx context.Context, q *query.ObjectQuery, uctx usercontext.Map) ([]map[string]interface{}, error) {
	metrics := observability.GraphQLMetricsFromContext(ctx)
	if err := r.queries.ApplyTransformers(q, r.model, uctx); err != nil {
		if metrics != nil {
			metrics.RecordTransformFailure(ctx, execerr.CodeOf(err))
		}
		return nil, err
	}
	sqlMap, err := translate.Translate(q, r.model, r.dialect)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		r.recordTranslations(ctx, metrics, q)
	}
	rows, err := r.fetchNode(ctx, dbexec.WithTimeout(dbexec.NewStandardExecutor(r.db), r.timeout), q, sqlMap)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		metrics.RecordResultsCount(ctx, int64(len(rows)), q.Kind.String())
	}
	return rows, nil
}

func (r *Resolver) recordTranslations(ctx context.Context, metrics *observability.GraphQLMetrics, q *query.ObjectQuery) {
	metrics.RecordTranslation(ctx, r.dialect.Name(), q.Kind.String())
	for _, join := range q.Joins {
		r.recordTranslations(ctx, metrics, join.Query)
	}
}

// fetchNode executes one node's statement and recursively attaches its
// joined children before handing rows back up.
func (r *Resolver) fetchNode(ctx context.Context, exec dbexec.QueryExecutor, q *query.ObjectQuery, sqlMap map[string]*translate.Statement) ([]map[string]interface{}, error) {
	stmt, ok := sqlMap[q.Path]
	if !ok {
		return nil, execerr.New(execerr.CodeExecution, "no statement for query path %s", q.Path)
	}
	rows, err := r.fetch(ctx, exec, q, stmt)
	if err != nil {
		return nil, err
	}
	for _, join := range q.Joins {
		children, err := r.fetchNode(ctx, exec, join.Query, sqlMap)
		if err != nil {
			return nil, err
		}
		if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
			kind := join.Query.Kind.String()
			metrics.RecordBatchParentCount(ctx, int64(len(rows)), kind)
			metrics.RecordBatchResultRows(ctx, int64(len(children)), kind)
		}
		stitch(q, join, rows, children)
	}
	return rows, nil
}

func (r *Resolver) fetch(ctx context.Context, exec dbexec.QueryExecutor, q *query.ObjectQuery, stmt *translate.Statement) ([]map[string]interface{}, error) {
	start := time.Now()
	rows, err := exec.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, execerr.Wrap(err, "query on %s failed", q.Table.SchemaQualifiedName())
	}
	defer rows.Close()

	out, err := scanRows(rows, q.Table)
	if err != nil {
		return nil, execerr.Wrap(err, "reading rows from %s failed", q.Table.SchemaQualifiedName())
	}
	r.logger.DebugContext(ctx, "query executed",
		slog.String("path", q.Path),
		slog.String("sql", stmt.SQL),
		slog.Int("rows", len(out)),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

// scanRows reads every row into a map keyed by column GraphQL names.
// Columns the model does not carry, such as the aggregate count, keep their
// SQL names.
func scanRows(rows dbexec.Rows, t *model.Table) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	// Non-nil so an empty result renders as [] rather than null.
	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(cols))
		for i, name := range cols {
			key := name
			var col *model.Column
			if c, ok := t.ColumnByDbName(name); ok {
				col = c
				key = c.GraphQLName
			}
			row[key] = normalizeValue(values[i], col)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue converts driver values into the forms the generated scalar
// types serialize. MySQL's text protocol hands most values back as bytes, so
// byte slices re-type through the column's declared scalar.
func normalizeValue(v interface{}, col *model.Column) interface{} {
	switch tv := v.(type) {
	case nil:
		return nil
	case time.Time:
		return tv.UTC().Format(time.RFC3339Nano)
	case []byte:
		return normalizeBytes(tv, col)
	case int64:
		if col != nil && col.ScalarType == sqltype.TypeBoolean {
			return tv != 0
		}
		return tv
	default:
		return v
	}
}

func normalizeBytes(b []byte, col *model.Column) interface{} {
	if col == nil {
		return string(b)
	}
	switch col.ScalarType {
	case sqltype.TypeInt:
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	case sqltype.TypeFloat:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	case sqltype.TypeBoolean:
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n != 0
		}
	}
	if len(b) == 16 {
		switch {
		case uuidutil.IsMixedEndianType(col.DataType):
			if _, s, err := uuidutil.ParseMixedEndianBytes(b); err == nil {
				return s
			}
		case uuidutil.IsBinaryStorageType(col.DataType):
			if _, s, err := uuidutil.ParseBytes(b); err == nil {
				return s
			}
		}
	}
	return string(b)
}

// stitch hangs child rows off each parent row under the link's field name.
// Single links attach one row or nil; multi links and dynamic joins attach a
// list, empty when no child matched.
func stitch(parent *query.ObjectQuery, join *query.Join, parents, children []map[string]interface{}) {
	link := join.Link
	single := join.Query.Kind == query.ClassSingle

	// The FK sits on the parent rows for a single link and on the child
	// rows otherwise.
	parentCol, childCol := link.ParentColumn, link.ChildColumn
	if single {
		parentCol, childCol = link.ChildColumn, link.ParentColumn
	}
	parentField := fieldKeyFor(parent.Table, parentCol)
	childField := fieldKeyFor(join.Query.Table, childCol)

	grouped := make(map[string][]map[string]interface{}, len(children))
	for _, child := range children {
		v := child[childField]
		if v == nil {
			continue
		}
		k := stitchKey(v)
		grouped[k] = append(grouped[k], child)
	}

	for _, p := range parents {
		v := p[parentField]
		if single {
			var match map[string]interface{}
			if v != nil {
				if rows := grouped[stitchKey(v)]; len(rows) > 0 {
					match = rows[0]
				}
			}
			if match != nil {
				p[link.Name] = match
			} else {
				p[link.Name] = nil
			}
			continue
		}
		rows := []map[string]interface{}{}
		if v != nil {
			if g := grouped[stitchKey(v)]; g != nil {
				rows = g
			}
		}
		p[link.Name] = rows
	}
}

func fieldKeyFor(t *model.Table, dbName string) string {
	if c, ok := t.ColumnByDbName(dbName); ok {
		return c.GraphQLName
	}
	return dbName
}

// stitchKey normalizes a link value for grouping, collapsing the integer
// widths and byte forms different drivers hand back for the same key.
func stitchKey(v interface{}) string {
	switch tv := v.(type) {
	case string:
		return tv
	case []byte:
		return string(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case int:
		return strconv.Itoa(tv)
	case int32:
		return strconv.FormatInt(int64(tv), 10)
	case float64:
		if tv == math.Trunc(tv) && tv >= math.MinInt64 && tv <= math.MaxInt64 {
			return strconv.FormatInt(int64(tv), 10)
		}
		return strconv.FormatFloat(tv, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	default:
		return fmt.Sprint(tv)
	}
}

func startSpan(ctx context.Context, name, target string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := otel.Tracer("bifrost-graphql/resolver")
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("db.target", target))
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("resolver.error_code", execerr.CodeOf(err)))
	}
	span.End()
}
