// Package translate serializes the query IR into parameterized SQL. Each IR
// node becomes one statement: the root query, one bulk-loader statement per
// joined link, and COUNT statements for aggregate nodes. Statements never
// inline user values; everything binds through placeholders numbered per
// statement.
package translate

import (
	"fmt"
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/uuidutil"
)

// Statement is one planned SQL statement with bound args.
type Statement struct {
	SQL  string
	Args []interface{}
}

// srcAlias names the derived table wrapping a parent query inside a
// bulk-loader IN subquery. The wrap keeps LIMIT legal inside IN on MySQL.
const srcAlias = "src"

// Translate serializes a query tree into statements keyed by IR path.
func Translate(q *query.ObjectQuery, m *model.Model, d dialect.Dialect) (map[string]*Statement, error) {
	sqlMap := make(map[string]*Statement)
	if err := AddSQLParameterized(q, m, d, sqlMap); err != nil {
		return nil, err
	}
	return sqlMap, nil
}

// AddSQLParameterized adds the statement for one IR node to sqlMap under the
// node's path, then recurses into its joins. Placeholder numbering restarts
// with every statement.
func AddSQLParameterized(q *query.ObjectQuery, m *model.Model, d dialect.Dialect, sqlMap map[string]*Statement) error {
	return addStatement(q, d, sqlMap, nil)
}

// addStatement renders one node with its membership conjunct and descends a
// level, deriving each child's membership from this node so nested joins
// stay scoped to the rows the request actually selects.
func addStatement(q *query.ObjectQuery, d dialect.Dialect, sqlMap map[string]*Statement, membership *fragment) error {
	stmt, err := buildStatement(q, d, membership)
	if err != nil {
		return err
	}
	sqlMap[q.Path] = stmt

	for _, join := range q.Joins {
		childMembership, err := membershipFragment(q, membership, join, d)
		if err != nil {
			return err
		}
		if err := addStatement(join.Query, d, sqlMap, childMembership); err != nil {
			return err
		}
	}
	return nil
}

// membershipFragment builds the bulk-loader conjunct for a joined node: its
// link column IN the parent's link column values, parent pagination and the
// parent's own membership included.
func membershipFragment(parent *query.ObjectQuery, parentMembership *fragment, join *query.Join, d dialect.Dialect) (*fragment, error) {
	child := join.Query
	outerCol, innerCol, err := linkSides(parent, child, join.Link)
	if err != nil {
		return nil, err
	}

	inner, err := parentKeySubquery(parent, parentMembership, d, innerCol)
	if err != nil {
		return nil, err
	}

	fkRef := d.TableReference(child.Schema, child.TableName) + "." + d.EscapeIdentifier(outerCol)
	keyRef := d.EscapeIdentifier(srcAlias) + "." + d.EscapeIdentifier(innerCol)
	inSQL := fkRef + " IN (SELECT " + keyRef + " FROM (" + inner.SQL + ") AS " + d.EscapeIdentifier(srcAlias) + ")"
	return &fragment{sql: inSQL, args: inner.Args}, nil
}

// linkSides resolves which side of the link the joined node sits on. A
// multi-link descends to the FK-holding table; a single-link ascends to the
// referenced table. The child's classification decides the direction when a
// self-referencing link makes the table names match on both sides.
func linkSides(parent, child *query.ObjectQuery, link *model.Link) (outerCol, innerCol string, err error) {
	if child.Kind == query.ClassSingle {
		if !strings.EqualFold(child.TableName, link.ParentTable) {
			return "", "", fmt.Errorf("link %q does not reference %q as its parent", link.Name, child.TableName)
		}
		return link.ParentColumn, link.ChildColumn, nil
	}
	switch {
	case strings.EqualFold(child.TableName, link.ChildTable):
		return link.ChildColumn, link.ParentColumn, nil
	case strings.EqualFold(child.TableName, link.ParentTable):
		return link.ParentColumn, link.ChildColumn, nil
	default:
		return "", "", fmt.Errorf("link %q references neither side of join to %q", link.Name, child.TableName)
	}
}

// parentKeySubquery renders the parent query reduced to its link column.
// Ordering and paging are emitted only when they change set membership;
// sort without paging is dropped so the subquery stays legal on SQL Server.
// The subquery keeps "?" placeholders: the enclosing statement renumbers
// every placeholder in one pass when it renders.
func parentKeySubquery(parent *query.ObjectQuery, parentMembership *fragment, d dialect.Dialect, keyCol string) (*Statement, error) {
	colRef := d.TableReference(parent.Schema, parent.TableName) + "." + d.EscapeIdentifier(keyCol)
	sel := colRef + " AS " + d.EscapeIdentifier(keyCol)

	paged := parent.Offset > 0 || parent.Limit != dialect.NoLimit
	return renderSelectAs(parent, d, []string{sel}, parentMembership, paged, sq.Question)
}

type fragment struct {
	sql  string
	args []interface{}
}

// buildStatement renders the full statement for one node. extra is an
// additional WHERE conjunct, used for bulk-loader membership.
func buildStatement(q *query.ObjectQuery, d dialect.Dialect, extra *fragment) (*Statement, error) {
	if q.Kind == query.ClassAggregate {
		return renderSelect(q, d, []string{"COUNT(*) AS " + d.EscapeIdentifier("count")}, extra, false)
	}

	cols := q.Columns
	if len(cols) == 0 {
		cols = q.Table.Columns
	}
	selectCols := make([]string, len(cols))
	tableRef := d.TableReference(q.Schema, q.TableName)
	for i, col := range cols {
		selectCols[i] = tableRef + "." + d.EscapeIdentifier(col.DbName)
	}
	return renderSelect(q, d, selectCols, extra, true)
}

// renderSelect assembles SELECT/FROM/WHERE plus the dialect's paging tail
// and renders placeholders in the dialect's format.
func renderSelect(q *query.ObjectQuery, d dialect.Dialect, selectCols []string, extra *fragment, withPaging bool) (*Statement, error) {
	return renderSelectAs(q, d, selectCols, extra, withPaging, d.PlaceholderFormat())
}

func renderSelectAs(q *query.ObjectQuery, d dialect.Dialect, selectCols []string, extra *fragment, withPaging bool, format sq.PlaceholderFormat) (*Statement, error) {
	builder := sq.Select(selectCols...).From(d.TableReference(q.Schema, q.TableName))

	whereSQL, whereArgs, err := filterSQL(q.Filter, q.Table, d)
	if err != nil {
		return nil, err
	}
	if whereSQL != "" {
		builder = builder.Where(sq.Expr(whereSQL, whereArgs...))
	}
	if extra != nil {
		builder = builder.Where(sq.Expr(extra.sql, extra.args...))
	}

	if withPaging {
		exprs, err := sortExprs(q, d)
		if err != nil {
			return nil, err
		}
		tail, tailArgs := d.Pagination(exprs, q.Offset, q.Limit)
		if tail != "" {
			builder = builder.Suffix(tail, tailArgs...)
		}
	}

	sqlStr, args, err := builder.PlaceholderFormat(format).ToSql()
	if err != nil {
		return nil, err
	}
	return &Statement{SQL: sqlStr, Args: args}, nil
}

// sortExprs renders the ORDER BY expressions, validating sort columns
// against the node's table.
func sortExprs(q *query.ObjectQuery, d dialect.Dialect) ([]string, error) {
	if len(q.Sort) == 0 {
		return nil, nil
	}
	exprs := make([]string, len(q.Sort))
	for i, key := range q.Sort {
		if q.Table != nil {
			if _, ok := q.Table.ColumnByDbName(key.Column); !ok {
				return nil, execerr.ColumnNotFound(key.Column, q.Table.SchemaQualifiedName())
			}
		}
		direction := " ASC"
		if key.Descending {
			direction = " DESC"
		}
		exprs[i] = d.EscapeIdentifier(key.Column) + direction
	}
	return exprs, nil
}

// filterSQL serializes a filter tree into a WHERE fragment with "?"
// placeholders. AND/OR nodes parenthesize their children.
func filterSQL(f query.Filter, t *model.Table, d dialect.Dialect) (string, []interface{}, error) {
	switch node := f.(type) {
	case nil:
		return "", nil, nil
	case *query.Leaf:
		return leafSQL(node, t, d)
	case *query.And:
		return combineSQL(node.Children, " AND ", t, d)
	case *query.Or:
		return combineSQL(node.Children, " OR ", t, d)
	default:
		return "", nil, fmt.Errorf("unsupported filter node %T", f)
	}
}

func combineSQL(children []query.Filter, sep string, t *model.Table, d dialect.Dialect) (string, []interface{}, error) {
	parts := make([]string, 0, len(children))
	var args []interface{}
	for _, child := range children {
		sqlStr, childArgs, err := filterSQL(child, t, d)
		if err != nil {
			return "", nil, err
		}
		if sqlStr == "" {
			continue
		}
		parts = append(parts, sqlStr)
		args = append(args, childArgs...)
	}
	switch len(parts) {
	case 0:
		return "", nil, nil
	case 1:
		return parts[0], args, nil
	default:
		return "(" + strings.Join(parts, sep) + ")", args, nil
	}
}

func leafSQL(leaf *query.Leaf, t *model.Table, d dialect.Dialect) (string, []interface{}, error) {
	if leaf.Next == nil {
		return "", nil, execerr.InvalidFormat("filter condition", leaf.ColumnName)
	}

	colRef := d.EscapeIdentifier(leaf.ColumnName)
	if leaf.TableName != "" {
		colRef = d.EscapeIdentifier(leaf.TableName) + "." + colRef
	}
	var col *model.Column
	if t != nil && (leaf.TableName == "" || strings.EqualFold(leaf.TableName, t.DbName)) {
		c, ok := t.ColumnByDbName(leaf.ColumnName)
		if !ok {
			return "", nil, execerr.ColumnNotFound(leaf.ColumnName, t.SchemaQualifiedName())
		}
		col = c
	}

	op := leaf.Next.Operator
	value := bindValue(col, leaf.Next.Value)

	if value == nil {
		switch op {
		case dialect.OpEq:
			return colRef + " IS NULL", nil, nil
		case dialect.OpNeq:
			return colRef + " IS NOT NULL", nil, nil
		default:
			return "", nil, execerr.InvalidFormat("null filter operator", op)
		}
	}

	switch op {
	case dialect.OpIn:
		return inSQL(colRef, value)
	case dialect.OpBetween:
		return betweenSQL(colRef, value)
	case dialect.OpContains:
		return colRef + " LIKE " + d.LikePattern("?", dialect.MatchContains), []interface{}{value}, nil
	case dialect.OpStartsWith:
		return colRef + " LIKE " + d.LikePattern("?", dialect.MatchStartsWith), []interface{}{value}, nil
	case dialect.OpEndsWith:
		return colRef + " LIKE " + d.LikePattern("?", dialect.MatchEndsWith), []interface{}{value}, nil
	}

	symbol, err := d.Operator(op)
	if err != nil {
		return "", nil, err
	}
	return colRef + " " + symbol + " ?", []interface{}{value}, nil
}

// inSQL expands a list value into an IN clause. An empty list can match no
// row, which serializes as a constant-false predicate. Null elements bind
// as parameters and follow SQL's IN NULL semantics.
func inSQL(colRef string, value interface{}) (string, []interface{}, error) {
	values, err := listValues(value)
	if err != nil {
		return "", nil, err
	}
	if len(values) == 0 {
		return "(1 = 0)", nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return colRef + " IN (" + placeholders + ")", values, nil
}

func betweenSQL(colRef string, value interface{}) (string, []interface{}, error) {
	values, err := listValues(value)
	if err != nil || len(values) != 2 {
		return "", nil, execerr.InvalidFormat("_between bounds", fmt.Sprintf("%v", value))
	}
	return colRef + " BETWEEN ? AND ?", values, nil
}

// bindValue converts UUID strings bound against binary UUID columns into the
// byte form those columns store, element-wise for list values.
func bindValue(col *model.Column, value interface{}) interface{} {
	if col == nil || !uuidutil.IsBinaryStorageType(col.DataType) {
		return value
	}
	if vs, ok := value.([]interface{}); ok {
		out := make([]interface{}, len(vs))
		for i, v := range vs {
			out[i] = uuidutil.EncodeBinary(v)
		}
		return out
	}
	return uuidutil.EncodeBinary(value)
}

// listValues normalizes a list-shaped filter value. GraphQL hands lists over
// as []interface{}; reflection covers typed slices from internal callers.
func listValues(value interface{}) ([]interface{}, error) {
	if vs, ok := value.([]interface{}); ok {
		return vs, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected list value, got %T", value)
	}
	values := make([]interface{}, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, nil
}
