package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Postgres targets PostgreSQL through the pgx stdlib driver.
var Postgres Dialect = postgresDialect{}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) EscapeIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d postgresDialect) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

func (postgresDialect) IsDefaultSchema(schema string) bool {
	return schema == "" || strings.EqualFold(schema, "public")
}

func (postgresDialect) Operator(op string) (string, error) {
	return operatorSymbol(op)
}

func (postgresDialect) LikePattern(paramRef string, kind MatchKind) string {
	return concatLikePattern(paramRef, kind)
}

func (postgresDialect) Pagination(sortExprs []string, offset, limit int) (string, []interface{}) {
	return limitOffsetPagination(sortExprs, offset, limit, "LIMIT ALL")
}

func (postgresDialect) LastInsertedIdentity() string {
	return "LASTVAL()"
}

func (postgresDialect) ParameterPrefix() string { return "$" }

func (postgresDialect) Placeholder(ordinal int) string {
	return fmt.Sprintf("$%d", ordinal)
}

func (postgresDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

// ProcedureCall treats PostgreSQL routines as set-returning functions; OUT
// parameters come back as result columns.
func (d postgresDialect) ProcedureCall(schema, name string, paramRefs []string) string {
	return "SELECT * FROM " + d.TableReference(schema, name) + "(" + strings.Join(paramRefs, ", ") + ")"
}
