package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/schemareader"
	"bifrost-graphql/internal/sqltype"
)

// ProcedureResult carries everything a stored procedure produced: zero or
// more result sets as generic rows, the driver-reported row count where the
// engine exposes one, and output parameter values by GraphQL name.
type ProcedureResult struct {
	ResultSets   [][]map[string]interface{}
	AffectedRows int64
	OutputParams map[string]interface{}
}

// CallProcedure invokes a stored procedure with the engine's calling
// convention. args are input values keyed by parameter GraphQL name.
//
// MySQL reads output parameters back through session variables, so a
// procedure with outputs must run on a pinned connection or transaction
// executor there.
func CallProcedure(ctx context.Context, exec QueryExecutor, d dialect.Dialect, p *model.StoredProcedure, args map[string]interface{}) (*ProcedureResult, error) {
	switch d.Name() {
	case "sqlserver":
		return callSQLServer(ctx, exec, d, p, args)
	case "postgres":
		return callPostgres(ctx, exec, d, p, args)
	case "mysql":
		return callMySQL(ctx, exec, d, p, args)
	default:
		return nil, execerr.New(execerr.CodeExecution, "dialect %s does not support stored procedures", d.Name())
	}
}

// callSQLServer uses EXEC with named parameters. Output parameters bind
// through sql.Out holders and are read after every result set is drained.
func callSQLServer(ctx context.Context, exec QueryExecutor, d dialect.Dialect, p *model.StoredProcedure, args map[string]interface{}) (*ProcedureResult, error) {
	refs := make([]string, 0, len(p.Params))
	bindArgs := make([]interface{}, 0, len(p.Params))
	type outBinding struct {
		name   string
		holder outHolder
	}
	var outs []outBinding

	ordinal := 0
	for _, param := range p.Params {
		ordinal++
		paramName := "@" + strings.TrimPrefix(param.DbName, "@")
		ref := paramName + " = " + d.Placeholder(ordinal)

		switch param.Direction {
		case schemareader.DirectionInput:
			refs = append(refs, ref)
			bindArgs = append(bindArgs, args[param.GraphQLName])
		default:
			holder := newOutHolder(param.ScalarType)
			if param.Direction == schemareader.DirectionInputOutput {
				holder.set(args[param.GraphQLName])
			}
			refs = append(refs, ref+" OUTPUT")
			bindArgs = append(bindArgs, sql.Out{
				Dest: holder.dest(),
				In:   param.Direction == schemareader.DirectionInputOutput,
			})
			outs = append(outs, outBinding{name: param.GraphQLName, holder: holder})
		}
	}

	rows, err := exec.QueryContext(ctx, d.ProcedureCall(p.Schema, p.DbName, refs), bindArgs...)
	if err != nil {
		return nil, execerr.Wrap(err, "procedure %s failed", p.SchemaQualifiedName())
	}
	sets, err := drainResultSets(rows)
	if err != nil {
		return nil, execerr.Wrap(err, "procedure %s result read failed", p.SchemaQualifiedName())
	}

	result := &ProcedureResult{ResultSets: sets, OutputParams: make(map[string]interface{}, len(outs))}
	for _, out := range outs {
		result.OutputParams[out.name] = out.holder.value()
	}
	return result, nil
}

// callPostgres treats the routine as a set-returning function; OUT
// parameters surface as columns of the first result set.
func callPostgres(ctx context.Context, exec QueryExecutor, d dialect.Dialect, p *model.StoredProcedure, args map[string]interface{}) (*ProcedureResult, error) {
	refs := make([]string, 0, len(p.Params))
	bindArgs := make([]interface{}, 0, len(p.Params))
	ordinal := 0
	for _, param := range p.InputParams() {
		ordinal++
		refs = append(refs, d.Placeholder(ordinal))
		bindArgs = append(bindArgs, args[param.GraphQLName])
	}

	rows, err := exec.QueryContext(ctx, d.ProcedureCall(p.Schema, p.DbName, refs), bindArgs...)
	if err != nil {
		return nil, execerr.Wrap(err, "procedure %s failed", p.SchemaQualifiedName())
	}
	sets, err := drainResultSets(rows)
	if err != nil {
		return nil, execerr.Wrap(err, "procedure %s result read failed", p.SchemaQualifiedName())
	}

	result := &ProcedureResult{ResultSets: sets, OutputParams: outputsFromFirstRow(p, sets)}
	return result, nil
}

// callMySQL passes outputs through session variables and reads them back
// together with ROW_COUNT() in one follow-up select on the same connection.
func callMySQL(ctx context.Context, exec QueryExecutor, d dialect.Dialect, p *model.StoredProcedure, args map[string]interface{}) (*ProcedureResult, error) {
	refs := make([]string, 0, len(p.Params))
	bindArgs := make([]interface{}, 0, len(p.Params))
	type outVar struct {
		name     string
		variable string
	}
	var outs []outVar

	for i, param := range p.Params {
		switch param.Direction {
		case schemareader.DirectionInput:
			refs = append(refs, "?")
			bindArgs = append(bindArgs, args[param.GraphQLName])
		default:
			variable := fmt.Sprintf("@_bifrost_out_%d", i)
			if param.Direction == schemareader.DirectionInputOutput {
				if _, err := exec.ExecContext(ctx, "SET "+variable+" = ?", args[param.GraphQLName]); err != nil {
					return nil, execerr.Wrap(err, "procedure %s parameter setup failed", p.SchemaQualifiedName())
				}
			}
			refs = append(refs, variable)
			outs = append(outs, outVar{name: param.GraphQLName, variable: variable})
		}
	}

	rows, err := exec.QueryContext(ctx, d.ProcedureCall(p.Schema, p.DbName, refs), bindArgs...)
	if err != nil {
		return nil, execerr.Wrap(err, "procedure %s failed", p.SchemaQualifiedName())
	}
	sets, err := drainResultSets(rows)
	if err != nil {
		return nil, execerr.Wrap(err, "procedure %s result read failed", p.SchemaQualifiedName())
	}

	readback := "SELECT ROW_COUNT()"
	for _, out := range outs {
		readback += ", " + out.variable
	}
	readRows, err := exec.QueryContext(ctx, readback)
	if err != nil {
		return nil, execerr.Wrap(err, "procedure %s output readback failed", p.SchemaQualifiedName())
	}
	defer readRows.Close()

	result := &ProcedureResult{ResultSets: sets, OutputParams: make(map[string]interface{}, len(outs))}
	if readRows.Next() {
		dest := make([]interface{}, len(outs)+1)
		holders := make([]interface{}, len(outs)+1)
		for i := range dest {
			dest[i] = &holders[i]
		}
		if err := readRows.Scan(dest...); err != nil {
			return nil, execerr.Wrap(err, "procedure %s output scan failed", p.SchemaQualifiedName())
		}
		if affected, ok := toInt64(holders[0]); ok && affected > 0 {
			result.AffectedRows = affected
		}
		for i, out := range outs {
			result.OutputParams[out.name] = normalizeValue(holders[i+1])
		}
	}
	if err := readRows.Err(); err != nil {
		return nil, execerr.Wrap(err, "procedure %s output read failed", p.SchemaQualifiedName())
	}
	return result, nil
}

// drainResultSets reads every result set into generic rows and closes rows.
func drainResultSets(rows Rows) ([][]map[string]interface{}, error) {
	defer rows.Close()

	var sets [][]map[string]interface{}
	for {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			set := []map[string]interface{}{}
			for rows.Next() {
				holders := make([]interface{}, len(cols))
				dest := make([]interface{}, len(cols))
				for i := range dest {
					dest[i] = &holders[i]
				}
				if err := rows.Scan(dest...); err != nil {
					return nil, err
				}
				row := make(map[string]interface{}, len(cols))
				for i, col := range cols {
					row[col] = normalizeValue(holders[i])
				}
				set = append(set, row)
			}
			if err := rows.Err(); err != nil {
				return nil, err
			}
			sets = append(sets, set)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	return sets, nil
}

// outputsFromFirstRow maps declared output parameters to matching columns of
// the first returned row.
func outputsFromFirstRow(p *model.StoredProcedure, sets [][]map[string]interface{}) map[string]interface{} {
	outs := p.OutputParams()
	values := make(map[string]interface{}, len(outs))
	if len(sets) == 0 || len(sets[0]) == 0 {
		return values
	}
	first := sets[0][0]
	for _, param := range outs {
		for col, v := range first {
			if strings.EqualFold(col, param.DbName) || col == param.GraphQLName {
				values[param.GraphQLName] = v
				break
			}
		}
	}
	return values
}

// normalizeValue converts driver byte slices and typed identifiers into
// JSON-friendly values.
func normalizeValue(v interface{}) interface{} {
	switch b := v.(type) {
	case []byte:
		return string(b)
	case mssql.UniqueIdentifier:
		return b.String()
	default:
		return v
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case []byte:
		var parsed int64
		if _, err := fmt.Sscan(string(n), &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// outHolder adapts sql.Out destinations for the scalar categories output
// parameters use.
type outHolder interface {
	dest() interface{}
	set(v interface{})
	value() interface{}
}

func newOutHolder(t sqltype.GraphQLType) outHolder {
	switch t {
	case sqltype.TypeInt:
		return &intHolder{}
	case sqltype.TypeFloat:
		return &floatHolder{}
	case sqltype.TypeBoolean:
		return &boolHolder{}
	default:
		return &stringHolder{}
	}
}

type intHolder struct{ v sql.NullInt64 }

func (h *intHolder) dest() interface{} { return &h.v }
func (h *intHolder) set(val interface{}) {
	if n, ok := toInt64(val); ok {
		h.v = sql.NullInt64{Int64: n, Valid: true}
	}
}
func (h *intHolder) value() interface{} {
	if !h.v.Valid {
		return nil
	}
	return h.v.Int64
}

type floatHolder struct{ v sql.NullFloat64 }

func (h *floatHolder) dest() interface{} { return &h.v }
func (h *floatHolder) set(val interface{}) {
	switch n := val.(type) {
	case float64:
		h.v = sql.NullFloat64{Float64: n, Valid: true}
	case int:
		h.v = sql.NullFloat64{Float64: float64(n), Valid: true}
	}
}
func (h *floatHolder) value() interface{} {
	if !h.v.Valid {
		return nil
	}
	return h.v.Float64
}

type boolHolder struct{ v sql.NullBool }

func (h *boolHolder) dest() interface{} { return &h.v }
func (h *boolHolder) set(val interface{}) {
	if b, ok := val.(bool); ok {
		h.v = sql.NullBool{Bool: b, Valid: true}
	}
}
func (h *boolHolder) value() interface{} {
	if !h.v.Valid {
		return nil
	}
	return h.v.Bool
}

type stringHolder struct{ v sql.NullString }

func (h *stringHolder) dest() interface{} { return &h.v }
func (h *stringHolder) set(val interface{}) {
	if val != nil {
		h.v = sql.NullString{String: fmt.Sprint(val), Valid: true}
	}
}
func (h *stringHolder) value() interface{} {
	if !h.v.Valid {
		return nil
	}
	return h.v.String
}
