package resolver

import (
	"context"

	"github.com/graphql-go/graphql"

	"bifrost-graphql/internal/dbexec"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
)

// ResolveProcedure invokes a stored procedure and shapes its result sets,
// affected count and output parameters for the generated result type.
func (r *Resolver) ResolveProcedure(p graphql.ResolveParams, sp *model.StoredProcedure) (out interface{}, err error) {
	ctx, span := startSpan(p.Context, "resolver.procedure", sp.SchemaQualifiedName())
	defer func() { finishSpan(span, err) }()

	input := map[string]interface{}{}
	if raw, ok := p.Args["input"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, execerr.New(execerr.CodeInvalidFormat, "input for %s must be an object", sp.GraphQLName)
		}
		input = m
	}

	exec, release, err := r.procedureExecutor(ctx, sp)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := dbexec.CallProcedure(ctx, exec, r.dialect, sp, input)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"resultSets":   res.ResultSets,
		"affectedRows": res.AffectedRows,
	}
	for name, value := range res.OutputParams {
		result[name] = value
	}
	return result, nil
}

// procedureExecutor pins a single connection when the dialect passes output
// parameters through session state; a pooled follow-up query could land on
// another connection and read nothing.
func (r *Resolver) procedureExecutor(ctx context.Context, sp *model.StoredProcedure) (dbexec.QueryExecutor, func(), error) {
	if r.dialect.Name() == "mysql" && len(sp.OutputParams()) > 0 {
		conn, err := r.db.Conn(ctx)
		if err != nil {
			return nil, nil, execerr.Wrap(err, "pinning connection for %s", sp.SchemaQualifiedName())
		}
		return dbexec.WithTimeout(dbexec.NewConnExecutor(conn), r.timeout), func() { _ = conn.Close() }, nil
	}
	return dbexec.WithTimeout(dbexec.NewStandardExecutor(r.db), r.timeout), func() {}, nil
}
