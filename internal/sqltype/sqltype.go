// Package sqltype maps database column types to GraphQL scalar categories,
// one mapping per supported dialect. Declared types are matched as reported
// by the database (e.g. "VARCHAR(100)", "DECIMAL(10,2)", "tinyint(1)").
package sqltype

import (
	"strings"

	"bifrost-graphql/internal/dialect"
)

// GraphQLType is the category of GraphQL scalar used for a SQL column.
type GraphQLType int

const (
	// TypeString is the default for text, dates, binary, and unknown types.
	TypeString GraphQLType = iota
	// TypeInt covers integer numeric types.
	TypeInt
	// TypeFloat covers floating-point and fixed-point numeric types.
	TypeFloat
	// TypeBoolean covers boolean types.
	TypeBoolean
	// TypeJSON covers JSON documents and array-valued columns.
	TypeJSON
)

// String returns the GraphQL scalar name for schema generation.
func (t GraphQLType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	case TypeJSON:
		return "JSON"
	default:
		return "String"
	}
}

// FilterTypeName returns the shared filter input type name for this category.
func (t GraphQLType) FilterTypeName() string {
	switch t {
	case TypeInt:
		return "IntFilter"
	case TypeFloat:
		return "FloatFilter"
	case TypeBoolean:
		return "BooleanFilter"
	default:
		return "StringFilter"
	}
}

// Map converts a declared column type to its GraphQL category under the given
// dialect. The declared type is matched case-insensitively; size specifiers
// are stripped except where they matter (MySQL tinyint(1)).
func Map(d dialect.Dialect, declared string) GraphQLType {
	switch d.Name() {
	case "sqlserver":
		return mapSQLServer(declared)
	case "postgres":
		return mapPostgres(declared)
	case "mysql":
		return mapMySQL(declared)
	case "sqlite":
		return mapSQLite(declared)
	default:
		return TypeString
	}
}

// baseType strips the size specifier and normalizes to upper case.
func baseType(declared string) string {
	if idx := strings.Index(declared, "("); idx != -1 {
		declared = declared[:idx]
	}
	return strings.ToUpper(strings.TrimSpace(declared))
}

func mapSQLServer(declared string) GraphQLType {
	switch baseType(declared) {
	case "INT", "BIGINT", "SMALLINT", "TINYINT":
		return TypeInt
	case "BIT":
		return TypeBoolean
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY", "FLOAT", "REAL":
		return TypeFloat
	default:
		// char/varchar/nvarchar/text, date/time variants, uniqueidentifier,
		// binary, xml: all surface as String.
		return TypeString
	}
}

func mapPostgres(declared string) GraphQLType {
	base := baseType(declared)
	// Array types surface as JSON documents.
	if strings.HasSuffix(base, "[]") || strings.HasPrefix(base, "_") {
		return TypeJSON
	}
	switch base {
	case "SMALLINT", "INTEGER", "BIGINT", "INT", "INT2", "INT4", "INT8",
		"SERIAL", "BIGSERIAL", "SMALLSERIAL":
		return TypeInt
	case "BOOLEAN", "BOOL":
		return TypeBoolean
	case "NUMERIC", "DECIMAL", "REAL", "DOUBLE PRECISION", "FLOAT4", "FLOAT8", "MONEY":
		return TypeFloat
	case "JSON", "JSONB":
		return TypeJSON
	default:
		// text/varchar/char, uuid, date/timestamp/interval, bytea, inet...
		return TypeString
	}
}

func mapMySQL(declared string) GraphQLType {
	// tinyint(1) is the conventional MySQL boolean; wider tinyints are ints.
	lower := strings.ToLower(strings.TrimSpace(declared))
	if strings.HasPrefix(lower, "tinyint(1)") {
		return TypeBoolean
	}

	base := baseType(declared)
	base = strings.TrimSuffix(base, " UNSIGNED")
	switch base {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		return TypeInt
	case "BIT", "BOOL", "BOOLEAN":
		return TypeBoolean
	case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
		return TypeFloat
	case "JSON":
		return TypeJSON
	default:
		// char/varchar/text family, enum/set, date/time family, blob/binary.
		return TypeString
	}
}

// mapSQLite follows SQLite's type-affinity rules: substring matching on the
// declared type, since SQLite accepts almost any type name.
func mapSQLite(declared string) GraphQLType {
	base := baseType(declared)
	switch {
	case base == "":
		return TypeString
	case strings.Contains(base, "BOOL"):
		return TypeBoolean
	case strings.Contains(base, "INT"):
		return TypeInt
	case strings.Contains(base, "CHAR"), strings.Contains(base, "CLOB"),
		strings.Contains(base, "TEXT"):
		return TypeString
	case strings.Contains(base, "BLOB"):
		return TypeString
	case strings.Contains(base, "REAL"), strings.Contains(base, "FLOA"),
		strings.Contains(base, "DOUB"), strings.Contains(base, "DEC"),
		strings.Contains(base, "NUMERIC"):
		return TypeFloat
	default:
		return TypeString
	}
}
