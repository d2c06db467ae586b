package schemareader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqliteReader introspects SQLite through PRAGMA statements. Everything
// lives in the "main" schema and there are no stored procedures to find.
type sqliteReader struct{}

func (r *sqliteReader) ReadSchema(ctx context.Context, q Queryer) (*SchemaData, error) {
	ctx, span := startSpan(ctx, "schemareader.sqlite.ReadSchema")
	defer span.End()

	data := NewSchemaData()
	if err := r.readTables(ctx, q, data); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	// Primary keys are needed before foreign keys: foreign_key_list reports
	// a NULL target column when the reference is to the parent's PK.
	pkColumns := make(map[string][]string, len(data.Tables))
	for _, t := range data.Tables {
		pk, err := r.readColumns(ctx, q, t.Name, data)
		if err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		pkColumns[t.Name] = pk
	}
	for _, t := range data.Tables {
		if err := r.readForeignKeys(ctx, q, t.Name, pkColumns, data); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
	}
	return data, nil
}

func (r *sqliteReader) readTables(ctx context.Context, q Queryer, data *SchemaData) error {
	rows, err := q.QueryContext(ctx, "PRAGMA table_list")
	if err != nil {
		return fmt.Errorf("querying table list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var schema, name, tableType string
		var ncol, withoutRowid, strict int
		if err := rows.Scan(&schema, &name, &tableType, &ncol, &withoutRowid, &strict); err != nil {
			return fmt.Errorf("scanning table list row: %w", err)
		}
		if schema != "main" || strings.HasPrefix(name, "sqlite_") {
			continue
		}
		var mapped string
		switch tableType {
		case "table":
			mapped = TableTypeBase
		case "view":
			mapped = TableTypeView
		default:
			continue
		}
		data.Tables = append(data.Tables, RawTable{
			Catalog: "main",
			Schema:  "main",
			Name:    name,
			Type:    mapped,
		})
	}
	return rows.Err()
}

// readColumns loads one table's columns and PK constraints. It returns the
// PK column names in key order for later FK resolution.
func (r *sqliteReader) readColumns(ctx context.Context, q Queryer, table string, data *SchemaData) ([]string, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+quoteSQLiteLiteral(table)+")")
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	type colInfo struct {
		col RawColumn
		pk  int
	}
	var cols []colInfo
	pkCount := 0
	for rows.Next() {
		var cid, notNull, pk int
		var name, declared string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		cols = append(cols, colInfo{
			col: RawColumn{
				Catalog:    "main",
				Schema:     "main",
				Table:      table,
				Name:       name,
				Ordinal:    cid + 1,
				DataType:   declared,
				IsNullable: notNull == 0,
			},
			pk: pk,
		})
		if pk > 0 {
			pkCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pkNames := make([]string, pkCount)
	for i := range cols {
		c := &cols[i]
		if c.pk > 0 {
			pkNames[c.pk-1] = c.col.Name
			// A lone INTEGER PRIMARY KEY aliases the rowid, which SQLite
			// assigns automatically. Composite keys never do.
			if pkCount == 1 && strings.EqualFold(strings.TrimSpace(c.col.DataType), "INTEGER") {
				c.col.IsIdentity = true
			}
			ref := ColumnRef{Catalog: "main", Schema: "main", Table: table, Column: c.col.Name}
			data.AddConstraint(ref, Constraint{Name: table + "_pk", Type: ConstraintPrimaryKey})
		}
		data.Columns = append(data.Columns, c.col)
	}
	return pkNames, nil
}

func (r *sqliteReader) readForeignKeys(ctx context.Context, q Queryer, table string, pkColumns map[string][]string, data *SchemaData) error {
	rows, err := q.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteSQLiteLiteral(table)+")")
	if err != nil {
		return fmt.Errorf("querying foreign keys of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, seq int
		var refTable, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("scanning foreign key row: %w", err)
		}
		refColumn := to.String
		if !to.Valid {
			pk := pkColumns[refTable]
			if seq >= len(pk) {
				continue
			}
			refColumn = pk[seq]
		}
		ref := ColumnRef{Catalog: "main", Schema: "main", Table: table, Column: from}
		data.AddConstraint(ref, Constraint{
			Name: fmt.Sprintf("%s_fk_%d", table, id),
			Type: ConstraintForeignKey,
			References: &ColumnRef{
				Catalog: "main",
				Schema:  "main",
				Table:   refTable,
				Column:  refColumn,
			},
		})
	}
	return rows.Err()
}

// quoteSQLiteLiteral encloses a name in single quotes for PRAGMA calls,
// which do not accept bound parameters.
func quoteSQLiteLiteral(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
