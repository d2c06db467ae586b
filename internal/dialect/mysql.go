package dialect

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// MySQL targets MySQL and compatible engines through the mysql driver.
var MySQL Dialect = mysqlDialect{}

type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) EscapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d mysqlDialect) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

// MySQL schemas are databases; the connection is already scoped to one, so
// every schema counts as default for naming purposes.
func (mysqlDialect) IsDefaultSchema(string) bool { return true }

func (mysqlDialect) Operator(op string) (string, error) {
	return operatorSymbol(op)
}

func (mysqlDialect) LikePattern(paramRef string, kind MatchKind) string {
	return concatLikePattern(paramRef, kind)
}

// Pagination: MySQL has no standalone OFFSET, so an uncapped offset uses the
// documented max-row-count form.
func (mysqlDialect) Pagination(sortExprs []string, offset, limit int) (string, []interface{}) {
	return limitOffsetPagination(sortExprs, offset, limit, "LIMIT 18446744073709551615")
}

func (mysqlDialect) LastInsertedIdentity() string {
	return "LAST_INSERT_ID()"
}

func (mysqlDialect) ParameterPrefix() string { return "@" }

// Placeholder is bare "?": the Go driver binds positionally and does not
// support server-side named parameters.
func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (d mysqlDialect) ProcedureCall(schema, name string, paramRefs []string) string {
	return "CALL " + d.TableReference(schema, name) + "(" + strings.Join(paramRefs, ", ") + ")"
}
