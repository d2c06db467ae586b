// Package schemareader introspects a live database connection and emits the
// raw schema the model layer is built from: tables, columns, key constraints
// and stored procedures. One reader per dialect; all of them produce the same
// SchemaData shape with deterministic ordering, so reading an unchanged
// database twice yields equal output.
package schemareader

import (
	"context"
	"database/sql"
	"fmt"

	"bifrost-graphql/internal/dialect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bifrost-graphql/internal/schemareader")

// Queryer is the minimal query surface a reader needs. *sql.DB and *sql.Tx
// both satisfy it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Reader introspects one database engine.
type Reader interface {
	ReadSchema(ctx context.Context, q Queryer) (*SchemaData, error)
}

// TableType distinguishes base tables from views.
const (
	TableTypeBase = "BASE TABLE"
	TableTypeView = "VIEW"
)

// ConstraintType classifies a key constraint on a column.
type ConstraintType string

const (
	ConstraintPrimaryKey ConstraintType = "PRIMARY KEY"
	ConstraintForeignKey ConstraintType = "FOREIGN KEY"
)

// ColumnRef addresses one column in the catalog.
type ColumnRef struct {
	Catalog string
	Schema  string
	Table   string
	Column  string
}

// Constraint is a key constraint attached to a column. References is set for
// foreign keys and names the parent-side column.
type Constraint struct {
	Name       string
	Type       ConstraintType
	References *ColumnRef
}

// RawTable is a table or view as reported by the catalog.
type RawTable struct {
	Catalog string
	Schema  string
	Name    string
	Type    string // TableTypeBase or TableTypeView
}

// RawColumn is a column as reported by the catalog. DataType preserves the
// declared type verbatim (e.g. "VARCHAR(100)", "DECIMAL(10,2)").
type RawColumn struct {
	Catalog    string
	Schema     string
	Table      string
	Name       string
	Ordinal    int
	DataType   string
	IsNullable bool
	IsIdentity bool
}

// ParamDirection is a stored-procedure parameter direction.
type ParamDirection string

const (
	DirectionInput       ParamDirection = "IN"
	DirectionOutput      ParamDirection = "OUT"
	DirectionInputOutput ParamDirection = "INOUT"
)

// RawParam is a stored-procedure parameter.
type RawParam struct {
	Name       string
	Ordinal    int
	DataType   string
	Direction  ParamDirection
	IsNullable bool
}

// RawProcedure is a stored procedure or set-returning function.
type RawProcedure struct {
	Catalog string
	Schema  string
	Name    string
	Params  []RawParam
}

// SchemaData is the raw schema a reader emits.
type SchemaData struct {
	Tables      []RawTable
	Columns     []RawColumn
	Constraints map[ColumnRef][]Constraint
	Procedures  []RawProcedure
}

// NewSchemaData returns an empty SchemaData with the constraint map allocated.
func NewSchemaData() *SchemaData {
	return &SchemaData{Constraints: make(map[ColumnRef][]Constraint)}
}

// AddConstraint appends a constraint for the given column.
func (s *SchemaData) AddConstraint(ref ColumnRef, c Constraint) {
	s.Constraints[ref] = append(s.Constraints[ref], c)
}

// New returns the reader for a dialect.
func New(d dialect.Dialect) (Reader, error) {
	switch d.Name() {
	case "sqlserver":
		return &sqlServerReader{}, nil
	case "postgres":
		return &postgresReader{}, nil
	case "mysql":
		return &mysqlReader{}, nil
	case "sqlite":
		return &sqliteReader{}, nil
	default:
		return nil, fmt.Errorf("no schema reader for dialect %q", d.Name())
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// parseYesNo converts the catalog's YES/NO strings to bool.
func parseYesNo(s string) bool {
	return s == "YES" || s == "yes"
}
