package treesync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bifrost-graphql/internal/dbexec"
	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/transform"
	"bifrost-graphql/internal/translate"
	"bifrost-graphql/internal/usercontext"
)

// Report summarizes one executed operation list. Counts follow the caller's
// intent: a delete rewritten to a soft-delete update still counts as
// Deleted.
type Report struct {
	Inserted int
	Updated  int
	Deleted  int
	// RootKey is the generated or client-supplied primary key of the
	// depth-0 insert, when the list contains one and a key was obtainable.
	RootKey interface{}
}

// Executor runs computed operations in list order. The caller supplies the
// execution scope; mutations must run on a transaction executor so identity
// readback stays on one connection and failures roll back the whole list.
type Executor struct {
	dialect dialect.Dialect
	service *transform.MutationTransformerService
}

// NewExecutor builds an executor for one dialect with the given mutation
// transformer chain.
func NewExecutor(d dialect.Dialect, service *transform.MutationTransformerService) *Executor {
	return &Executor{dialect: d, service: service}
}

type plannedOp struct {
	op     *Operation
	result transform.MutationTransformResult
}

// Execute transforms every operation first and executes only when the whole
// list transformed cleanly, so a batched mutation surfaces all row errors at
// once instead of stopping at the first.
func (e *Executor) Execute(ctx context.Context, exec dbexec.QueryExecutor, m *model.Model, uctx usercontext.Map, ops []*Operation) (*Report, error) {
	planned := make([]plannedOp, 0, len(ops))
	var rowErrs []error
	for _, op := range ops {
		result := e.service.Transform(op.Table, m, mutationType(op.Type), op.Data, uctx)
		if len(result.Errors) > 0 {
			for _, err := range result.Errors {
				rowErrs = append(rowErrs, fmt.Errorf("%s on %s: %w",
					mutationType(op.Type), op.Table.SchemaQualifiedName(), err))
			}
			continue
		}
		planned = append(planned, plannedOp{op: op, result: result})
	}
	if len(rowErrs) > 0 {
		return nil, errors.Join(rowErrs...)
	}

	keyedOps, keyedTables := identityConsumers(ops)

	report := &Report{}
	identities := make(map[*Operation]interface{})
	lastByTable := make(map[string]interface{})

	for _, p := range planned {
		op := p.op
		switch p.result.MutationType {
		case transform.MutationInsert:
			if err := fillForeignKeys(op, p.result.Data, identities, lastByTable); err != nil {
				return nil, err
			}
			wantKey := keyedOps[op] || keyedTables[strings.ToLower(op.Table.DbName)] || op.Depth == 0
			key, err := e.runInsert(ctx, exec, op.Table, p.result.Data, wantKey)
			if err != nil {
				return nil, err
			}
			if key != nil {
				identities[op] = key
				lastByTable[strings.ToLower(op.Table.DbName)] = key
				if op.Depth == 0 && report.RootKey == nil {
					report.RootKey = key
				}
			}
		case transform.MutationUpdate:
			if err := e.runUpdate(ctx, exec, op, p.result); err != nil {
				return nil, err
			}
		case transform.MutationDelete:
			if err := e.runDelete(ctx, exec, op, p.result); err != nil {
				return nil, err
			}
		}

		switch op.Type {
		case OpInsert:
			report.Inserted++
		case OpUpdate:
			report.Updated++
		case OpDelete:
			report.Deleted++
		}
	}
	return report, nil
}

func mutationType(t OperationType) transform.MutationType {
	switch t {
	case OpInsert:
		return transform.MutationInsert
	case OpUpdate:
		return transform.MutationUpdate
	default:
		return transform.MutationDelete
	}
}

// identityConsumers finds which inserts need their generated key read back:
// specific parent operations referenced by pending child inserts, and tables
// whose last insert a child without a resolved parent falls back to.
func identityConsumers(ops []*Operation) (map[*Operation]bool, map[string]bool) {
	byOp := make(map[*Operation]bool)
	byTable := make(map[string]bool)
	for _, op := range ops {
		if op.Type != OpInsert {
			continue
		}
		for column, parentTable := range op.ForeignKeyAssignments {
			if v, ok := op.Data[column]; ok && v != nil {
				continue
			}
			if op.parent != nil {
				byOp[op.parent] = true
			}
			byTable[strings.ToLower(parentTable)] = true
		}
	}
	return byOp, byTable
}

// fillForeignKeys resolves pending foreign-key columns against keys
// generated earlier in the run. The parent operation's own key wins over the
// per-table fallback so self-referencing tables bind the right row.
func fillForeignKeys(op *Operation, data map[string]interface{}, identities map[*Operation]interface{}, lastByTable map[string]interface{}) error {
	for column, parentTable := range op.ForeignKeyAssignments {
		if v, ok := data[column]; ok && v != nil {
			continue
		}
		if op.parent != nil {
			if key, ok := identities[op.parent]; ok {
				data[column] = key
				continue
			}
		}
		if key, ok := lastByTable[strings.ToLower(parentTable)]; ok {
			data[column] = key
			continue
		}
		return execerr.New(execerr.CodeExecution,
			"no generated key available for %s.%s referencing table %q",
			op.Table.DbName, column, parentTable)
	}
	return nil
}

// runInsert executes the insert and, when asked, obtains the new row's key:
// the client-supplied primary key value when present, otherwise the
// dialect's generated identity. SQL Server reads SCOPE_IDENTITY in the same
// batch because it is scoped to it; Postgres runs LASTVAL as a follow-up on
// the same connection; MySQL and SQLite report it on the statement result.
func (e *Executor) runInsert(ctx context.Context, exec dbexec.QueryExecutor, t *model.Table, data map[string]interface{}, wantKey bool) (interface{}, error) {
	stmt, err := translate.Insert(t, e.dialect, data)
	if err != nil {
		return nil, err
	}

	if supplied, ok := suppliedKey(t, data); ok {
		if _, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			return nil, execerr.Wrap(err, "insert into %s failed", t.SchemaQualifiedName())
		}
		return supplied, nil
	}
	if !wantKey || identityColumn(t) == nil {
		if _, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			return nil, execerr.Wrap(err, "insert into %s failed", t.SchemaQualifiedName())
		}
		return nil, nil
	}

	switch e.dialect.Name() {
	case "sqlserver":
		batch := stmt.SQL + "; " + translate.IdentityQuery(e.dialect)
		key, err := queryScalar(ctx, exec, batch, stmt.Args...)
		if err != nil {
			return nil, execerr.Wrap(err, "insert into %s failed", t.SchemaQualifiedName())
		}
		return normalizeKey(key), nil
	case "postgres":
		if _, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			return nil, execerr.Wrap(err, "insert into %s failed", t.SchemaQualifiedName())
		}
		key, err := queryScalar(ctx, exec, translate.IdentityQuery(e.dialect))
		if err != nil {
			return nil, execerr.Wrap(err, "identity readback for %s failed", t.SchemaQualifiedName())
		}
		return normalizeKey(key), nil
	default:
		res, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, execerr.Wrap(err, "insert into %s failed", t.SchemaQualifiedName())
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, execerr.Wrap(err, "identity readback for %s failed", t.SchemaQualifiedName())
		}
		if id == 0 {
			return nil, nil
		}
		return id, nil
	}
}

func (e *Executor) runUpdate(ctx context.Context, exec dbexec.QueryExecutor, op *Operation, result transform.MutationTransformResult) error {
	filter, err := rowFilter(op, result.AdditionalFilter)
	if err != nil {
		return err
	}
	stmt, err := translate.Update(op.Table, e.dialect, result.Data, filter)
	if err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
		return execerr.Wrap(err, "update of %s failed", op.Table.SchemaQualifiedName())
	}
	return nil
}

func (e *Executor) runDelete(ctx context.Context, exec dbexec.QueryExecutor, op *Operation, result transform.MutationTransformResult) error {
	filter, err := rowFilter(op, result.AdditionalFilter)
	if err != nil {
		return err
	}
	stmt, err := translate.Delete(op.Table, e.dialect, filter)
	if err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
		return execerr.Wrap(err, "delete from %s failed", op.Table.SchemaQualifiedName())
	}
	return nil
}

// rowFilter pins the statement to the operation's row by primary key, ANDed
// with whatever the transformer chain added.
func rowFilter(op *Operation, additional query.Filter) (query.Filter, error) {
	filter, err := translate.PrimaryKeyFilter(op.Table, op.Keys)
	if err != nil {
		return nil, err
	}
	if additional != nil {
		filter = query.NewAnd(filter, additional)
	}
	return filter, nil
}

// suppliedKey reports the client-provided primary key value for tables with
// a single-column key.
func suppliedKey(t *model.Table, data map[string]interface{}) (interface{}, bool) {
	pks := t.PrimaryKeyColumns()
	if len(pks) != 1 {
		return nil, false
	}
	v, ok := data[pks[0].DbName]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// identityColumn returns the table's generated key column, if the primary
// key is a single identity column.
func identityColumn(t *model.Table) *model.Column {
	pks := t.PrimaryKeyColumns()
	if len(pks) != 1 || !pks[0].IsIdentity {
		return nil
	}
	return pks[0]
}

// queryScalar reads the single value a statement produces, skipping empty
// leading result sets. A batched INSERT; SELECT on SQL Server lands here.
func queryScalar(ctx context.Context, exec dbexec.QueryExecutor, sqlStr string, args ...interface{}) (interface{}, error) {
	rows, err := exec.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for {
		if rows.Next() {
			var value interface{}
			if err := rows.Scan(&value); err != nil {
				return nil, err
			}
			return value, rows.Err()
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if !rows.NextResultSet() {
			return nil, fmt.Errorf("statement produced no rows")
		}
	}
}

// normalizeKey makes driver-specific identity representations bindable as
// parameters. go-mssqldb hands SCOPE_IDENTITY back as numeric bytes.
func normalizeKey(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		s := string(b)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return s
	}
	return v
}
