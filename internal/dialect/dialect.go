// Package dialect bundles the per-engine SQL surface conventions: identifier
// escaping, operator symbols, LIKE patterns, pagination syntax, parameter
// placeholders, and the identity-retrieval snippet.
//
// Dialects differ only in surface syntax. For equivalent input every dialect
// produces the same parameter values; the translator relies on that to keep
// queries portable across engines.
package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// MatchKind selects the LIKE pattern shape for string-match operators.
type MatchKind int

const (
	MatchContains MatchKind = iota
	MatchStartsWith
	MatchEndsWith
)

// Dialect is the capability set implemented once per supported engine.
// Implementations are immutable value singletons safe for concurrent use.
type Dialect interface {
	// Name identifies the dialect in configuration, logs and metrics.
	Name() string
	// DriverName is the database/sql driver this dialect executes through.
	DriverName() string

	// EscapeIdentifier wraps a bare identifier in the engine's quoting.
	EscapeIdentifier(name string) string
	// TableReference emits schema.table with both parts escaped; an empty
	// schema yields just the escaped table.
	TableReference(schema, table string) string
	// IsDefaultSchema reports whether the schema name needs no qualification
	// in generated GraphQL names (dbo, public, main; MySQL has no schemas
	// below the database, so everything is default).
	IsDefaultSchema(schema string) bool

	// Operator maps a logical filter operator code to its SQL symbol.
	Operator(op string) (string, error)
	// LikePattern wraps an already-rendered parameter reference in the
	// wildcard expression for the given match kind.
	LikePattern(paramRef string, kind MatchKind) string

	// Pagination renders the ORDER BY + paging tail for a query. sortExprs are
	// pre-escaped "col ASC" expressions; when empty and paging is requested
	// the dialect supplies an implicit deterministic order. limit -1 omits the
	// row cap. Paging values are returned as bind arguments in the order the
	// clause references them.
	Pagination(sortExprs []string, offset, limit int) (string, []interface{})

	// LastInsertedIdentity is the expression producing the identity value of
	// the last insert on this connection.
	LastInsertedIdentity() string

	// ParameterPrefix is the engine's named-parameter prefix.
	ParameterPrefix() string
	// Placeholder renders the 1-based positional placeholder the Go driver
	// binds. MySQL and SQLite drivers bind bare "?" regardless of the
	// engine-side named-parameter prefix.
	Placeholder(ordinal int) string
	// PlaceholderFormat converts squirrel's "?" output into this dialect's
	// placeholders.
	PlaceholderFormat() sq.PlaceholderFormat

	// ProcedureCall renders a stored-procedure invocation over the given
	// rendered parameter references. Empty when the engine has no procedures.
	ProcedureCall(schema, name string, paramRefs []string) string
}

// Filter operator codes shared by the query IR and every dialect.
const (
	OpEq         = "_eq"
	OpNeq        = "_neq"
	OpGt         = "_gt"
	OpLt         = "_lt"
	OpGte        = "_gte"
	OpLte        = "_lte"
	OpIn         = "_in"
	OpContains   = "_contains"
	OpStartsWith = "_starts_with"
	OpEndsWith   = "_ends_with"
	OpBetween    = "_between"
)

// Operators lists every filter operator code in schema-surface order.
var Operators = []string{
	OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte,
	OpIn, OpContains, OpStartsWith, OpEndsWith, OpBetween,
}

// DefaultLimit is the row cap applied when a query requests none.
// NoLimit disables the cap entirely.
const (
	DefaultLimit = 100
	NoLimit      = -1
)

// FromName resolves a configured dialect name, accepting common aliases.
func FromName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
}

// All returns the four supported dialects, used by cross-dialect tests.
func All() []Dialect {
	return []Dialect{SQLServer, Postgres, MySQL, SQLite}
}

// operatorSymbol is the shared operator table; every dialect uses the same
// logical mapping and differs only in how LIKE patterns are assembled.
func operatorSymbol(op string) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpNeq:
		return "<>", nil
	case OpGt:
		return ">", nil
	case OpLt:
		return "<", nil
	case OpGte:
		return ">=", nil
	case OpLte:
		return "<=", nil
	case OpIn:
		return "IN", nil
	case OpContains, OpStartsWith, OpEndsWith:
		return "LIKE", nil
	case OpBetween:
		return "BETWEEN", nil
	default:
		return "", fmt.Errorf("unknown filter operator %q", op)
	}
}

// concatLikePattern builds CONCAT-based wildcard expressions for the engines
// that support CONCAT (SQL Server, PostgreSQL, MySQL).
func concatLikePattern(paramRef string, kind MatchKind) string {
	switch kind {
	case MatchStartsWith:
		return "CONCAT(" + paramRef + ", '%')"
	case MatchEndsWith:
		return "CONCAT('%', " + paramRef + ")"
	default:
		return "CONCAT('%', " + paramRef + ", '%')"
	}
}

// limitOffsetPagination renders the LIMIT/OFFSET tail shared by PostgreSQL,
// MySQL and SQLite. unlimitedForm is the engine's LIMIT clause when an offset
// is requested without a row cap.
func limitOffsetPagination(sortExprs []string, offset, limit int, unlimitedForm string) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	if len(sortExprs) > 0 {
		sb.WriteString("ORDER BY ")
		sb.WriteString(strings.Join(sortExprs, ", "))
	}

	switch {
	case limit == NoLimit && offset <= 0:
		// No paging tail at all.
	case limit == NoLimit:
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(unlimitedForm)
		sb.WriteString(" OFFSET ?")
		args = append(args, offset)
	default:
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("LIMIT ? OFFSET ?")
		args = append(args, limit, offset)
	}

	return sb.String(), args
}
