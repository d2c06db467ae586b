package resolver

import (
	"context"
	"log/slog"
	"sort"

	"github.com/graphql-go/graphql"

	"bifrost-graphql/internal/dbexec"
	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/observability"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/treesync"
	"bifrost-graphql/internal/usercontext"
)

// ResolveInsert creates the submitted tree and returns the stored root row
// shaped by the request's selection set.
func (r *Resolver) ResolveInsert(p graphql.ResolveParams, t *model.Table) (out interface{}, err error) {
	ctx, span := startSpan(p.Context, "resolver.insert", t.SchemaQualifiedName())
	defer func() { finishSpan(span, err) }()

	data, err := mutationData(p)
	if err != nil {
		return nil, err
	}
	uctx := usercontext.FromContext(ctx)

	ops, err := r.engine.ComputeOperations(r.model, t, data, nil)
	if err != nil {
		return nil, execerr.Wrap(err, "computing insert operations for %s", t.SchemaQualifiedName())
	}
	report, err := r.runOperations(ctx, uctx, ops)
	if err != nil {
		return nil, err
	}
	r.logReport(ctx, "insert", t, report)
	return r.reloadRow(ctx, p, t, rootReloadFilter(report, t, data), uctx)
}

// ResolveUpdate syncs the submitted tree against the stored one: changed
// roots update, unmatched children insert, and children the submission no
// longer carries become orphans handled per the orphan policy. A submitted
// root with no stored match inserts.
func (r *Resolver) ResolveUpdate(p graphql.ResolveParams, t *model.Table) (out interface{}, err error) {
	ctx, span := startSpan(p.Context, "resolver.update", t.SchemaQualifiedName())
	defer func() { finishSpan(span, err) }()

	data, err := mutationData(p)
	if err != nil {
		return nil, err
	}
	uctx := usercontext.FromContext(ctx)

	// A submitted root without its key values has no stored match by
	// definition and follows the insert path.
	var existing map[string]interface{}
	if hasPrimaryKey(t, data) {
		existing, err = r.loadExistingTree(ctx, t, data, uctx)
		if err != nil {
			return nil, err
		}
	}
	ops, err := r.engine.ComputeOperations(r.model, t, data, existing)
	if err != nil {
		return nil, execerr.Wrap(err, "computing update operations for %s", t.SchemaQualifiedName())
	}
	report, err := r.runOperations(ctx, uctx, ops)
	if err != nil {
		return nil, err
	}
	r.logReport(ctx, "update", t, report)
	return r.reloadRow(ctx, p, t, rootReloadFilter(report, t, data), uctx)
}

// ResolveDelete removes the identified row and its child rows, innermost
// first, and returns the number of rows the operation list touched. A
// soft-delete rewrite still counts as a removal.
func (r *Resolver) ResolveDelete(p graphql.ResolveParams, t *model.Table) (out interface{}, err error) {
	ctx, span := startSpan(p.Context, "resolver.delete", t.SchemaQualifiedName())
	defer func() { finishSpan(span, err) }()

	data, err := mutationData(p)
	if err != nil {
		return nil, err
	}
	uctx := usercontext.FromContext(ctx)

	existing, err := r.loadExistingTree(ctx, t, data, uctx)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return 0, nil
	}
	ops, err := r.engine.DeleteOperations(r.model, t, existing)
	if err != nil {
		return nil, execerr.Wrap(err, "computing delete operations for %s", t.SchemaQualifiedName())
	}
	report, err := r.runOperations(ctx, uctx, ops)
	if err != nil {
		return nil, err
	}
	r.logReport(ctx, "delete", t, report)
	return report.Deleted, nil
}

// runOperations executes an operation list inside one transaction so a
// failure anywhere rolls the whole tree back.
func (r *Resolver) runOperations(ctx context.Context, uctx usercontext.Map, ops []*treesync.Operation) (*treesync.Report, error) {
	if len(ops) == 0 {
		return &treesync.Report{}, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, execerr.Wrap(err, "starting mutation transaction")
	}
	report, err := r.executor.Execute(ctx, dbexec.WithTimeout(dbexec.NewTxExecutor(tx), r.timeout), r.model, uctx, ops)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.ErrorContext(ctx, "mutation rollback failed", slog.String("error", rbErr.Error()))
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, execerr.Wrap(err, "committing mutation transaction")
	}
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordTreeSyncOps(ctx, "insert", int64(report.Inserted))
		metrics.RecordTreeSyncOps(ctx, "update", int64(report.Updated))
		metrics.RecordTreeSyncOps(ctx, "delete", int64(report.Deleted))
	}
	return report, nil
}

// loadExistingTree reads the stored tree for the submitted root down to the
// sync depth. The read goes through the regular query path, so rows the
// policy chain hides never count as orphans.
func (r *Resolver) loadExistingTree(ctx context.Context, t *model.Table, data map[string]interface{}, uctx usercontext.Map) (map[string]interface{}, error) {
	filter, err := primaryKeyFilter(t, data)
	if err != nil {
		return nil, err
	}
	q := r.existingQuery(t, 0)
	q.SetUserFilter(filter)
	rows, err := r.runQuery(ctx, q, uctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// existingQuery selects every column and descends multi-links to the sync
// depth, mirroring the shape the engine diffs.
func (r *Resolver) existingQuery(t *model.Table, depth int) *query.ObjectQuery {
	q := query.New(t, t.GraphQLName)
	q.SelectAll()
	q.Limit = dialect.NoLimit
	if depth+1 >= r.engine.MaxDepth() {
		return q
	}
	for _, name := range sortedLinkNames(t.MultiLinks) {
		link := t.MultiLinks[name]
		child, ok := link.ChildTableIn(r.model)
		if !ok {
			continue
		}
		q.AddJoin(link, r.existingQuery(child, depth+1))
	}
	return q
}

// reloadRow fetches the mutated root row back through the regular read path
// so the response honors the request's selection set and the policy chain.
func (r *Resolver) reloadRow(ctx context.Context, p graphql.ResolveParams, t *model.Table, filter query.Filter, uctx usercontext.Map) (interface{}, error) {
	if filter == nil {
		return nil, nil
	}
	b := newRequestBuilder(r, p)
	b.uctx = uctx
	q, err := b.listQuery(t, nil)
	if err != nil {
		return nil, err
	}
	q.SetUserFilter(filter)
	q.Limit = 1
	rows, err := r.runQuery(ctx, q, uctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// rootReloadFilter identifies the mutated root: the generated identity when
// the run produced one, otherwise the submitted primary key values.
func rootReloadFilter(report *treesync.Report, t *model.Table, data map[string]interface{}) query.Filter {
	if report != nil && report.RootKey != nil {
		if pk := singlePrimaryKey(t); pk != nil {
			return query.NewLeaf(t.DbName, pk.DbName, dialect.OpEq, report.RootKey)
		}
	}
	filter, err := primaryKeyFilter(t, data)
	if err != nil {
		return nil
	}
	return filter
}

// primaryKeyFilter builds the root lookup filter from submitted key values.
// Every key column must be present and non-null.
func primaryKeyFilter(t *model.Table, data map[string]interface{}) (query.Filter, error) {
	pks := t.PrimaryKeyColumns()
	if len(pks) == 0 {
		return nil, execerr.New(execerr.CodeInvalidFormat, "table %s has no primary key", t.SchemaQualifiedName())
	}
	parts := make([]query.Filter, 0, len(pks))
	for _, pk := range pks {
		v, ok := valueFor(data, pk)
		if !ok || v == nil {
			return nil, execerr.New(execerr.CodeInvalidFormat,
				"mutation on %s requires primary key %s", t.GraphQLName, pk.GraphQLName)
		}
		parts = append(parts, query.NewLeaf(t.DbName, pk.DbName, dialect.OpEq, v))
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return query.NewAnd(parts...), nil
}

func singlePrimaryKey(t *model.Table) *model.Column {
	pks := t.PrimaryKeyColumns()
	if len(pks) == 1 {
		return pks[0]
	}
	return nil
}

// hasPrimaryKey reports whether data carries a non-null value for every
// primary key column.
func hasPrimaryKey(t *model.Table, data map[string]interface{}) bool {
	pks := t.PrimaryKeyColumns()
	if len(pks) == 0 {
		return false
	}
	for _, pk := range pks {
		if v, ok := valueFor(data, pk); !ok || v == nil {
			return false
		}
	}
	return true
}

// valueFor reads a column value from client data by either name spelling.
func valueFor(data map[string]interface{}, col *model.Column) (interface{}, bool) {
	if v, ok := data[col.GraphQLName]; ok {
		return v, true
	}
	if v, ok := data[col.DbName]; ok {
		return v, true
	}
	return nil, false
}

func mutationData(p graphql.ResolveParams) (map[string]interface{}, error) {
	raw, ok := p.Args["data"]
	if !ok || raw == nil {
		return nil, execerr.New(execerr.CodeInvalidFormat, "mutation requires a data argument")
	}
	data, ok := raw.(map[string]interface{})
	if !ok {
		return nil, execerr.New(execerr.CodeInvalidFormat, "mutation data must be an object")
	}
	return data, nil
}

func (r *Resolver) logReport(ctx context.Context, op string, t *model.Table, report *treesync.Report) {
	r.logger.InfoContext(ctx, "mutation applied",
		slog.String("operation", op),
		slog.String("table", t.SchemaQualifiedName()),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("deleted", report.Deleted))
}

func sortedLinkNames(links map[string]*model.Link) []string {
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
