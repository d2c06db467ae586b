package translate

import (
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
)

// Insert builds the INSERT for one row. Row keys are database column names
// and render in sorted order so equal rows produce equal SQL.
func Insert(t *model.Table, d dialect.Dialect, row map[string]interface{}) (*Statement, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("insert into %s requires at least one column", t.SchemaQualifiedName())
	}

	names := make([]string, 0, len(row))
	for name := range row {
		if _, ok := t.ColumnByDbName(name); !ok {
			return nil, execerr.ColumnNotFound(name, t.SchemaQualifiedName())
		}
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]string, len(names))
	values := make([]interface{}, len(names))
	for i, name := range names {
		cols[i] = d.EscapeIdentifier(name)
		col, _ := t.ColumnByDbName(name)
		values[i] = bindValue(col, row[name])
	}

	sqlStr, args, err := sq.Insert(d.TableReference(t.Schema, t.DbName)).
		Columns(cols...).
		Values(values...).
		PlaceholderFormat(d.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return nil, err
	}
	return &Statement{SQL: sqlStr, Args: args}, nil
}

// Update builds the UPDATE for one row. The filter carries the primary-key
// match plus any policy conjuncts and must not be empty.
func Update(t *model.Table, d dialect.Dialect, set map[string]interface{}, f query.Filter) (*Statement, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("update of %s has no columns to set", t.SchemaQualifiedName())
	}

	whereSQL, whereArgs, err := filterSQL(f, t, d)
	if err != nil {
		return nil, err
	}
	if whereSQL == "" {
		return nil, fmt.Errorf("refusing to update %s without a row filter", t.SchemaQualifiedName())
	}

	setMap := make(map[string]interface{}, len(set))
	for name, value := range set {
		col, ok := t.ColumnByDbName(name)
		if !ok {
			return nil, execerr.ColumnNotFound(name, t.SchemaQualifiedName())
		}
		setMap[d.EscapeIdentifier(name)] = bindValue(col, value)
	}

	sqlStr, args, err := sq.Update(d.TableReference(t.Schema, t.DbName)).
		SetMap(setMap).
		Where(sq.Expr(whereSQL, whereArgs...)).
		PlaceholderFormat(d.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return nil, err
	}
	return &Statement{SQL: sqlStr, Args: args}, nil
}

// Delete builds the DELETE for rows matching the filter, which must not be
// empty.
func Delete(t *model.Table, d dialect.Dialect, f query.Filter) (*Statement, error) {
	whereSQL, whereArgs, err := filterSQL(f, t, d)
	if err != nil {
		return nil, err
	}
	if whereSQL == "" {
		return nil, fmt.Errorf("refusing to delete from %s without a row filter", t.SchemaQualifiedName())
	}

	sqlStr, args, err := sq.Delete(d.TableReference(t.Schema, t.DbName)).
		Where(sq.Expr(whereSQL, whereArgs...)).
		PlaceholderFormat(d.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return nil, err
	}
	return &Statement{SQL: sqlStr, Args: args}, nil
}

// PrimaryKeyFilter builds the AND of equality leaves over the table's
// primary key. Every key column must be present in values.
func PrimaryKeyFilter(t *model.Table, values map[string]interface{}) (query.Filter, error) {
	pkCols := t.PrimaryKeyColumns()
	if len(pkCols) == 0 {
		return nil, fmt.Errorf("table %s has no primary key", t.SchemaQualifiedName())
	}

	leaves := make([]query.Filter, len(pkCols))
	for i, col := range pkCols {
		value, ok := values[col.DbName]
		if !ok {
			return nil, fmt.Errorf("missing primary key column %q for %s", col.DbName, t.SchemaQualifiedName())
		}
		leaves[i] = query.NewLeaf(t.DbName, col.DbName, dialect.OpEq, value)
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return query.NewAnd(leaves...), nil
}

// IdentityQuery is the follow-up statement reading the identity generated by
// the last insert on the same connection.
func IdentityQuery(d dialect.Dialect) string {
	return "SELECT " + d.LastInsertedIdentity()
}
