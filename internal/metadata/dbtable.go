package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bifrost-graphql/internal/dialect"
)

// DefaultTableName is the metadata table read when none is configured.
const DefaultTableName = "bifrost_metadata"

type dbQueryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// LoadDatabaseTable reads annotations from a metadata table inside the target
// database. Expected columns: scope, table_name, column_name, meta_key,
// meta_value. table_name may be schema-qualified ("dbo.Orders").
func LoadDatabaseTable(ctx context.Context, q dbQueryer, d dialect.Dialect, tableName string) (*Bundle, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}
	query := "SELECT scope, table_name, column_name, meta_key, meta_value FROM " + d.EscapeIdentifier(tableName)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying metadata table %s: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	b := NewBundle()
	for rows.Next() {
		var scope, key string
		var table, column, value sql.NullString
		if err := rows.Scan(&scope, &table, &column, &key, &value); err != nil {
			return nil, fmt.Errorf("scanning metadata row: %w", err)
		}
		if key == "" {
			return nil, fmt.Errorf("metadata table %s: row with empty meta_key", tableName)
		}
		switch strings.ToLower(strings.TrimSpace(scope)) {
		case "model":
			b.SetModel(key, value.String)
		case "table":
			if table.String == "" {
				return nil, fmt.Errorf("metadata table %s: table-scope row for key %q without table_name", tableName, key)
			}
			schema, name := splitQualified(table.String)
			b.SetTable(schema, name, key, value.String)
		case "column":
			if table.String == "" || column.String == "" {
				return nil, fmt.Errorf("metadata table %s: column-scope row for key %q needs table_name and column_name", tableName, key)
			}
			schema, name := splitQualified(table.String)
			b.SetColumn(schema, name, column.String, key, value.String)
		default:
			return nil, fmt.Errorf("metadata table %s: unknown scope %q", tableName, scope)
		}
	}
	return b, rows.Err()
}

func splitQualified(name string) (schema, table string) {
	if before, after, found := strings.Cut(name, "."); found {
		return before, after
	}
	return "", name
}

// Load merges the configured sources: the database table first, then the
// sidecar file on top, so file entries win.
func Load(ctx context.Context, filePath string, q dbQueryer, d dialect.Dialect, tableName string) (*Bundle, error) {
	merged := NewBundle()
	if q != nil {
		fromDB, err := LoadDatabaseTable(ctx, q, d, tableName)
		if err != nil {
			return nil, err
		}
		merged.Overlay(fromDB)
	}
	if filePath != "" {
		fromFile, err := LoadFile(filePath)
		if err != nil {
			return nil, err
		}
		merged.Overlay(fromFile)
	}
	return merged, nil
}
