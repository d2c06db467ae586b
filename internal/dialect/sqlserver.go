package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// SQLServer targets Microsoft SQL Server through the mssql driver.
var SQLServer Dialect = sqlServerDialect{}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string       { return "sqlserver" }
func (sqlServerDialect) DriverName() string { return "sqlserver" }

func (sqlServerDialect) EscapeIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d sqlServerDialect) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

func (sqlServerDialect) IsDefaultSchema(schema string) bool {
	return schema == "" || strings.EqualFold(schema, "dbo")
}

func (sqlServerDialect) Operator(op string) (string, error) {
	return operatorSymbol(op)
}

func (sqlServerDialect) LikePattern(paramRef string, kind MatchKind) string {
	return concatLikePattern(paramRef, kind)
}

// Pagination uses OFFSET/FETCH, which requires an ORDER BY; when the caller
// supplies no sort, ORDER BY (SELECT NULL) keeps the statement valid.
func (sqlServerDialect) Pagination(sortExprs []string, offset, limit int) (string, []interface{}) {
	if limit == NoLimit && offset <= 0 {
		if len(sortExprs) == 0 {
			return "", nil
		}
		return "ORDER BY " + strings.Join(sortExprs, ", "), nil
	}

	order := "ORDER BY (SELECT NULL)"
	if len(sortExprs) > 0 {
		order = "ORDER BY " + strings.Join(sortExprs, ", ")
	}

	if limit == NoLimit {
		return order + " OFFSET ? ROWS", []interface{}{offset}
	}
	return order + " OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", []interface{}{offset, limit}
}

func (sqlServerDialect) LastInsertedIdentity() string {
	return "SCOPE_IDENTITY()"
}

func (sqlServerDialect) ParameterPrefix() string { return "@" }

func (sqlServerDialect) Placeholder(ordinal int) string {
	return fmt.Sprintf("@p%d", ordinal)
}

func (sqlServerDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.AtP }

func (d sqlServerDialect) ProcedureCall(schema, name string, paramRefs []string) string {
	call := "EXEC " + d.TableReference(schema, name)
	if len(paramRefs) > 0 {
		call += " " + strings.Join(paramRefs, ", ")
	}
	return call
}
