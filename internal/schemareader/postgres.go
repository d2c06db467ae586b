package schemareader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// postgresReader introspects PostgreSQL through information_schema. System
// schemas are skipped and set-returning functions stand in for procedures,
// matching how they are invoked later.
type postgresReader struct{}

func (r *postgresReader) ReadSchema(ctx context.Context, q Queryer) (*SchemaData, error) {
	ctx, span := startSpan(ctx, "schemareader.postgres.ReadSchema")
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

func (r *postgresReader) readTables(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT table_catalog, table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
			AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_schema, table_name`
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

func (r *postgresReader) readColumns(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT table_catalog, table_schema, table_name, column_name,
			ordinal_position, data_type, udt_name, is_nullable, is_identity, column_default
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name, ordinal_position`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var col RawColumn
		var dataType, udtName, isNullable, isIdentity string
		var columnDefault sql.NullString
		if err := rows.Scan(&col.Catalog, &col.Schema, &col.Table, &col.Name,
			&col.Ordinal, &dataType, &udtName, &isNullable, &isIdentity, &columnDefault); err != nil {
			return fmt.Errorf("scanning column row: %w", err)
		}
		col.DataType = composePostgresType(dataType, udtName)
		col.IsNullable = parseYesNo(isNullable)
		// serial columns predate identity columns and report through the
		// default expression instead.
		col.IsIdentity = parseYesNo(isIdentity) ||
			(columnDefault.Valid && strings.HasPrefix(columnDefault.String, "nextval("))
		data.Columns = append(data.Columns, col)
	}
	return rows.Err()
}

// composePostgresType prefers udt_name when information_schema collapses
// the declared type ("ARRAY" with udt_name "_text", "USER-DEFINED" enums).
func composePostgresType(dataType, udtName string) string {
	switch dataType {
	case "ARRAY", "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

func (r *postgresReader) readPrimaryKeys(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT kcu.table_catalog, kcu.table_schema, kcu.table_name, kcu.column_name, kcu.constraint_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
			ON tc.constraint_name = kcu.constraint_name
			AND tc.constraint_schema = kcu.constraint_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.table_schema, kcu.table_name, kcu.ordinal_position`
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

func (r *postgresReader) readForeignKeys(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT tc.table_catalog, tc.table_schema, tc.table_name, kcu.column_name, tc.constraint_name,
			ccu.table_schema, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.constraint_schema = tc.constraint_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.constraint_schema = tc.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var catalog, constraint string
		var schema, table, column string
		var refSchema, refTable, refColumn string
		if err := rows.Scan(&catalog, &schema, &table, &column, &constraint,
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

func (r *postgresReader) readProcedures(ctx context.Context, q Queryer, data *SchemaData) error {
	query := `
		SELECT routine_catalog, routine_schema, routine_name, specific_name
		FROM information_schema.routines
		WHERE routine_schema NOT IN ('pg_catalog', 'information_schema')
			AND routine_type = 'FUNCTION'
			AND data_type <> 'trigger'
		ORDER BY routine_schema, routine_name`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying routines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var procs []RawProcedure
	var specifics []string
	for rows.Next() {
		var p RawProcedure
		var specific string
		if err := rows.Scan(&p.Catalog, &p.Schema, &p.Name, &specific); err != nil {
			return fmt.Errorf("scanning routine row: %w", err)
		}
		procs = append(procs, p)
		specifics = append(specifics, specific)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range procs {
		params, err := r.readRoutineParams(ctx, q, procs[i].Schema, specifics[i])
		if err != nil {
			return err
		}
		procs[i].Params = params
	}
	data.Procedures = procs
	return nil
}

func (r *postgresReader) readRoutineParams(ctx context.Context, q Queryer, schema, specific string) ([]RawParam, error) {
	query := `
		SELECT parameter_name, ordinal_position, data_type, udt_name, parameter_mode
		FROM information_schema.parameters
		WHERE specific_schema = $1 AND specific_name = $2 AND ordinal_position > 0
		ORDER BY ordinal_position`
	rows, err := q.QueryContext(ctx, query, schema, specific)
	if err != nil {
		return nil, fmt.Errorf("querying parameters of %s: %w", specific, err)
	}
	defer func() { _ = rows.Close() }()

	var params []RawParam
	for rows.Next() {
		var name, dataType, udtName, mode sql.NullString
		var ordinal int
		if err := rows.Scan(&name, &ordinal, &dataType, &udtName, &mode); err != nil {
			return nil, fmt.Errorf("scanning parameter row: %w", err)
		}
		params = append(params, RawParam{
			Name:       name.String,
			Ordinal:    ordinal,
			DataType:   composePostgresType(dataType.String, udtName.String),
			Direction:  parseParamMode(mode.String),
			IsNullable: true,
		})
	}
	return params, rows.Err()
}
