package dialect

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// SQLite targets SQLite through the CGo-free modernc driver.
var SQLite Dialect = sqliteDialect{}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

// SQLite accepts several quoting styles; backticks match what the engine
// itself reports in introspection output.
func (sqliteDialect) EscapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d sqliteDialect) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

func (sqliteDialect) IsDefaultSchema(schema string) bool {
	return schema == "" || strings.EqualFold(schema, "main")
}

func (sqliteDialect) Operator(op string) (string, error) {
	return operatorSymbol(op)
}

// LikePattern concatenates with || for compatibility with SQLite versions
// that predate the CONCAT function.
func (sqliteDialect) LikePattern(paramRef string, kind MatchKind) string {
	switch kind {
	case MatchStartsWith:
		return paramRef + " || '%'"
	case MatchEndsWith:
		return "'%' || " + paramRef
	default:
		return "'%' || " + paramRef + " || '%'"
	}
}

func (sqliteDialect) Pagination(sortExprs []string, offset, limit int) (string, []interface{}) {
	return limitOffsetPagination(sortExprs, offset, limit, "LIMIT -1")
}

func (sqliteDialect) LastInsertedIdentity() string {
	return "last_insert_rowid()"
}

func (sqliteDialect) ParameterPrefix() string { return "@" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

// ProcedureCall is empty: SQLite has no stored procedures.
func (sqliteDialect) ProcedureCall(string, string, []string) string { return "" }
