package schemareader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqlServerReader introspects SQL Server through INFORMATION_SCHEMA views
// plus the sys catalog where the standard views fall short (identity flags,
// foreign key column pairs).
type sqlServerReader struct{}

func (r *sqlServerReader) ReadSchema(ctx context.Context, q Queryer) (*SchemaData, error) {
	ctx, span := startSpan(ctx, "schemareader.sqlserver.ReadSchema")
	defer span.End()

	data := NewSchemaData()
	steps := []func(context.Context, Queryer, *SchemaData) error{
		r.readTables,
		r.readColumns,
		r.readPrimaryKeys,
		r.readForeignKeys,
		r.readProcedures,
	}
	for _, step := range steps {
		if err := step(ctx, q, data); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
	}
	return data, nil
}

func (r *sqlServerReader) readTables(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT TABLE_CATALOG, TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		ORDER BY TABLE_SCHEMA, TABLE_NAME`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var t RawTable
		if err := rows.Scan(&t.Catalog, &t.Schema, &t.Name, &t.Type); err != nil {
			return fmt.Errorf("scanning table row: %w", err)
		}
		data.Tables = append(data.Tables, t)
	}
	return rows.Err()
}

func (r *sqlServerReader) readColumns(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT c.TABLE_CATALOG, c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME,
			c.ORDINAL_POSITION, c.DATA_TYPE, c.CHARACTER_MAXIMUM_LENGTH,
			c.NUMERIC_PRECISION, c.NUMERIC_SCALE, c.IS_NULLABLE,
			COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity')
		FROM INFORMATION_SCHEMA.COLUMNS c
		ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var col RawColumn
		var dataType, isNullable string
		var charLen, precision, scale, isIdentity sql.NullInt64
		if err := rows.Scan(&col.Catalog, &col.Schema, &col.Table, &col.Name,
			&col.Ordinal, &dataType, &charLen, &precision, &scale,
			&isNullable, &isIdentity); err != nil {
			return fmt.Errorf("scanning column row: %w", err)
		}
		col.DataType = composeSQLServerType(dataType, charLen, precision, scale)
		col.IsNullable = parseYesNo(isNullable)
		col.IsIdentity = isIdentity.Valid && isIdentity.Int64 == 1
		data.Columns = append(data.Columns, col)
	}
	return rows.Err()
}

// composeSQLServerType rebuilds the declared type from INFORMATION_SCHEMA
// parts: "varchar(100)", "nvarchar(max)", "decimal(10,2)", "int".
func composeSQLServerType(dataType string, charLen, precision, scale sql.NullInt64) string {
	switch strings.ToLower(dataType) {
	case "char", "varchar", "nchar", "nvarchar", "binary", "varbinary":
		if !charLen.Valid {
			return dataType
		}
		if charLen.Int64 == -1 {
			return dataType + "(max)"
		}
		return fmt.Sprintf("%s(%d)", dataType, charLen.Int64)
	case "decimal", "numeric":
		if !precision.Valid {
			return dataType
		}
		return fmt.Sprintf("%s(%d,%d)", dataType, precision.Int64, scale.Int64)
	default:
		return dataType
	}
}

func (r *sqlServerReader) readPrimaryKeys(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT kcu.TABLE_CATALOG, kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME, kcu.CONSTRAINT_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		ORDER BY kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.ORDINAL_POSITION`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ref ColumnRef
		var constraint string
		if err := rows.Scan(&ref.Catalog, &ref.Schema, &ref.Table, &ref.Column, &constraint); err != nil {
			return fmt.Errorf("scanning primary key row: %w", err)
		}
		data.AddConstraint(ref, Constraint{Name: constraint, Type: ConstraintPrimaryKey})
	}
	return rows.Err()
}

func (r *sqlServerReader) readForeignKeys(ctx context.Context, q Queryer, data *SchemaData) error {
	// INFORMATION_SCHEMA does not pair referencing and referenced columns,
	// so foreign keys come from the sys catalog.
	query := `
		SELECT DB_NAME(), fk.name,
			sp.name, tp.name, cp.name,
			sr.name, tr.name, cr.name
		FROM sys.foreign_key_columns fkc
		JOIN sys.foreign_keys fk ON fk.object_id = fkc.constraint_object_id
		JOIN sys.tables tp ON tp.object_id = fkc.parent_object_id
		JOIN sys.schemas sp ON sp.schema_id = tp.schema_id
		JOIN sys.columns cp ON cp.object_id = fkc.parent_object_id AND cp.column_id = fkc.parent_column_id
		JOIN sys.tables tr ON tr.object_id = fkc.referenced_object_id
		JOIN sys.schemas sr ON sr.schema_id = tr.schema_id
		JOIN sys.columns cr ON cr.object_id = fkc.referenced_object_id AND cr.column_id = fkc.referenced_column_id
		ORDER BY sp.name, tp.name, fk.name, fkc.constraint_column_id`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var catalog, constraint string
		var schema, table, column string
		var refSchema, refTable, refColumn string
		if err := rows.Scan(&catalog, &constraint, &schema, &table, &column,
			&refSchema, &refTable, &refColumn); err != nil {
			return fmt.Errorf("scanning foreign key row: %w", err)
		}
		ref := ColumnRef{Catalog: catalog, Schema: schema, Table: table, Column: column}
		data.AddConstraint(ref, Constraint{
			Name: constraint,
			Type: ConstraintForeignKey,
			References: &ColumnRef{
				Catalog: catalog,
				Schema:  refSchema,
				Table:   refTable,
				Column:  refColumn,
			},
		})
	}
	return rows.Err()
}

func (r *sqlServerReader) readProcedures(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT ROUTINE_CATALOG, ROUTINE_SCHEMA, ROUTINE_NAME
		FROM INFORMATION_SCHEMA.ROUTINES
		WHERE ROUTINE_TYPE = 'PROCEDURE'
		ORDER BY ROUTINE_SCHEMA, ROUTINE_NAME`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying procedures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var procs []RawProcedure
	for rows.Next() {
		var p RawProcedure
		if err := rows.Scan(&p.Catalog, &p.Schema, &p.Name); err != nil {
			return fmt.Errorf("scanning procedure row: %w", err)
		}
		procs = append(procs, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range procs {
		params, err := r.readProcedureParams(ctx, q, procs[i].Schema, procs[i].Name)
		if err != nil {
			return err
		}
		procs[i].Params = params
	}
	data.Procedures = procs
	return nil
}

func (r *sqlServerReader) readProcedureParams(ctx context.Context, q Queryer, schema, proc string) ([]RawParam, error) {
	query := `
		SELECT p.PARAMETER_NAME, p.ORDINAL_POSITION, p.DATA_TYPE,
			p.CHARACTER_MAXIMUM_LENGTH, p.NUMERIC_PRECISION, p.NUMERIC_SCALE, p.PARAMETER_MODE
		FROM INFORMATION_SCHEMA.PARAMETERS p
		WHERE p.SPECIFIC_SCHEMA = @p1 AND p.SPECIFIC_NAME = @p2 AND p.IS_RESULT = 'NO'
		ORDER BY p.ORDINAL_POSITION`
	rows, err := q.QueryContext(ctx, query, schema, proc)
	if err != nil {
		return nil, fmt.Errorf("querying parameters of %s.%s: %w", schema, proc, err)
	}
	defer func() { _ = rows.Close() }()

	var params []RawParam
	for rows.Next() {
		var name, dataType, mode sql.NullString
		var charLen, precision, scale sql.NullInt64
		var ordinal int
		if err := rows.Scan(&name, &ordinal, &dataType, &charLen, &precision, &scale, &mode); err != nil {
			return nil, fmt.Errorf("scanning parameter row: %w", err)
		}
		params = append(params, RawParam{
			Name:       strings.TrimPrefix(name.String, "@"),
			Ordinal:    ordinal,
			DataType:   composeSQLServerType(dataType.String, charLen, precision, scale),
			Direction:  parseParamMode(mode.String),
			IsNullable: true,
		})
	}
	return params, rows.Err()
}
