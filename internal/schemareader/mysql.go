package schemareader

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// mysqlReader introspects MySQL and compatible engines through
// INFORMATION_SCHEMA, scoped to the connection's current database.
type mysqlReader struct{}

func (r *mysqlReader) ReadSchema(ctx context.Context, q Queryer) (*SchemaData, error) {
	ctx, span := startSpan(ctx, "schemareader.mysql.ReadSchema")
	defer span.End()

	schema, err := r.currentDatabase(ctx, q)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("db.name", schema))

	data := NewSchemaData()
	if err := r.readTables(ctx, q, schema, data); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if err := r.readColumns(ctx, q, schema, data); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if err := r.readPrimaryKeys(ctx, q, schema, data); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if err := r.readForeignKeys(ctx, q, schema, data); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if err := r.readProcedures(ctx, q, schema, data); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return data, nil
}

func (r *mysqlReader) currentDatabase(ctx context.Context, q Queryer) (string, error) {
	rows, err := q.QueryContext(ctx, "SELECT DATABASE()")
	if err != nil {
		return "", fmt.Errorf("querying current database: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var name sql.NullString
	if rows.Next() {
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scanning current database: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if !name.Valid || name.String == "" {
		return "", fmt.Errorf("connection has no current database selected")
	}
	return name.String, nil
}

func (r *mysqlReader) readTables(ctx context.Context, q Queryer, schema string, data *SchemaData) error {
	query := `
		SELECT TABLE_NAME, TABLE_TYPE
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`
	rows, err := q.QueryContext(ctx, query, schema)
	if err != nil {
		return fmt.Errorf("querying tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return fmt.Errorf("scanning table row: %w", err)
		}
		if tableType != TableTypeView {
			tableType = TableTypeBase
		}
		data.Tables = append(data.Tables, RawTable{
			Catalog: "def",
			Schema:  schema,
			Name:    name,
			Type:    tableType,
		})
	}
	return rows.Err()
}

func (r *mysqlReader) readColumns(ctx context.Context, q Queryer, schema string, data *SchemaData) error {
	// COLUMN_TYPE preserves the declared type verbatim, including sizes and
	// signedness ("varchar(100)", "int unsigned", "tinyint(1)").
	query := `
		SELECT TABLE_NAME, COLUMN_NAME, ORDINAL_POSITION, COLUMN_TYPE, IS_NULLABLE, EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`
	rows, err := q.QueryContext(ctx, query, schema)
	if err != nil {
		return fmt.Errorf("querying columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var table, column, columnType, isNullable, extra string
		var ordinal int
		if err := rows.Scan(&table, &column, &ordinal, &columnType, &isNullable, &extra); err != nil {
			return fmt.Errorf("scanning column row: %w", err)
		}
		data.Columns = append(data.Columns, RawColumn{
			Catalog:    "def",
			Schema:     schema,
			Table:      table,
			Name:       column,
			Ordinal:    ordinal,
			DataType:   columnType,
			IsNullable: parseYesNo(isNullable),
			IsIdentity: extra == "auto_increment",
		})
	}
	return rows.Err()
}

func (r *mysqlReader) readPrimaryKeys(ctx context.Context, q Queryer, schema string, data *SchemaData) error {
	query := `
		SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME, kcu.CONSTRAINT_NAME
		FROM information_schema.KEY_COLUMN_USAGE kcu
		JOIN information_schema.TABLE_CONSTRAINTS tc
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE kcu.TABLE_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		ORDER BY kcu.TABLE_NAME, kcu.ORDINAL_POSITION`
	rows, err := q.QueryContext(ctx, query, schema)
	if err != nil {
		return fmt.Errorf("querying primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var table, column, constraint string
		if err := rows.Scan(&table, &column, &constraint); err != nil {
			return fmt.Errorf("scanning primary key row: %w", err)
		}
		ref := ColumnRef{Catalog: "def", Schema: schema, Table: table, Column: column}
		data.AddConstraint(ref, Constraint{Name: constraint, Type: ConstraintPrimaryKey})
	}
	return rows.Err()
}

func (r *mysqlReader) readForeignKeys(ctx context.Context, q Queryer, schema string, data *SchemaData) error {
	query := `
		SELECT TABLE_NAME, COLUMN_NAME, CONSTRAINT_NAME,
			REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`
	rows, err := q.QueryContext(ctx, query, schema)
	if err != nil {
		return fmt.Errorf("querying foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var table, column, constraint, refSchema, refTable, refColumn string
		if err := rows.Scan(&table, &column, &constraint, &refSchema, &refTable, &refColumn); err != nil {
			return fmt.Errorf("scanning foreign key row: %w", err)
		}
		ref := ColumnRef{Catalog: "def", Schema: schema, Table: table, Column: column}
		data.AddConstraint(ref, Constraint{
			Name: constraint,
			Type: ConstraintForeignKey,
			References: &ColumnRef{
				Catalog: "def",
				Schema:  refSchema,
				Table:   refTable,
				Column:  refColumn,
			},
		})
	}
	return rows.Err()
}

func (r *mysqlReader) readProcedures(ctx context.Context, q Queryer, schema string, data *SchemaData) error {
	query := `
		SELECT ROUTINE_NAME
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'PROCEDURE'
		ORDER BY ROUTINE_NAME`
	rows, err := q.QueryContext(ctx, query, schema)
	if err != nil {
		return fmt.Errorf("querying procedures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var procs []RawProcedure
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning procedure row: %w", err)
		}
		procs = append(procs, RawProcedure{Catalog: "def", Schema: schema, Name: name})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range procs {
		params, err := r.readProcedureParams(ctx, q, schema, procs[i].Name)
		if err != nil {
			return err
		}
		procs[i].Params = params
	}
	data.Procedures = procs
	return nil
}

func (r *mysqlReader) readProcedureParams(ctx context.Context, q Queryer, schema, proc string) ([]RawParam, error) {
	query := `
		SELECT PARAMETER_NAME, ORDINAL_POSITION, DTD_IDENTIFIER, PARAMETER_MODE
		FROM information_schema.PARAMETERS
		WHERE SPECIFIC_SCHEMA = ? AND SPECIFIC_NAME = ? AND ORDINAL_POSITION > 0
		ORDER BY ORDINAL_POSITION`
	rows, err := q.QueryContext(ctx, query, schema, proc)
	if err != nil {
		return nil, fmt.Errorf("querying parameters of %s: %w", proc, err)
	}
	defer func() { _ = rows.Close() }()

	var params []RawParam
	for rows.Next() {
		var name, dataType sql.NullString
		var mode sql.NullString
		var ordinal int
		if err := rows.Scan(&name, &ordinal, &dataType, &mode); err != nil {
			return nil, fmt.Errorf("scanning parameter row: %w", err)
		}
		params = append(params, RawParam{
			Name:       name.String,
			Ordinal:    ordinal,
			DataType:   dataType.String,
			Direction:  parseParamMode(mode.String),
			IsNullable: true,
		})
	}
	return params, rows.Err()
}

func parseParamMode(mode string) ParamDirection {
	switch mode {
	case "OUT":
		return DirectionOutput
	case "INOUT":
		return DirectionInputOutput
	default:
		return DirectionInput
	}
}
