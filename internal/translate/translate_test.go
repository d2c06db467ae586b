package translate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/metadata"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/schemareader"
	"bifrost-graphql/internal/transform"
	"bifrost-graphql/internal/usercontext"
)

// storeModel builds Users and Orders with an orders FK so join statements
// have a link to traverse.
func storeModel(t *testing.T, d dialect.Dialect, bundle *metadata.Bundle) *model.Model {
	t.Helper()
	data := schemareader.NewSchemaData()
	data.Tables = []schemareader.RawTable{
		{Catalog: "store", Schema: "dbo", Name: "Users", Type: schemareader.TableTypeBase},
		{Catalog: "store", Schema: "dbo", Name: "Orders", Type: schemareader.TableTypeBase},
	}
	for i, name := range []string{"Id", "Name", "deleted_at"} {
		data.Columns = append(data.Columns, schemareader.RawColumn{
			Catalog: "store", Schema: "dbo", Table: "Users", Name: name,
			Ordinal: i + 1, DataType: "varchar(100)", IsNullable: i > 0,
			IsIdentity: i == 0,
		})
	}
	for i, name := range []string{"Id", "user_id", "tenant_id", "Total", "deleted_at"} {
		data.Columns = append(data.Columns, schemareader.RawColumn{
			Catalog: "store", Schema: "dbo", Table: "Orders", Name: name,
			Ordinal: i + 1, DataType: "int", IsNullable: i > 0,
			IsIdentity: i == 0,
		})
	}
	data.AddConstraint(
		schemareader.ColumnRef{Catalog: "store", Schema: "dbo", Table: "Orders", Column: "user_id"},
		schemareader.Constraint{
			Name: "fk_orders_users",
			Type: schemareader.ConstraintForeignKey,
			References: &schemareader.ColumnRef{
				Catalog: "store", Schema: "dbo", Table: "Users", Column: "Id",
			},
		})

	m, err := model.Build(data, d, bundle, nil, nil)
	require.NoError(t, err)
	return m
}

func tableQuery(t *testing.T, m *model.Model, name string) *query.ObjectQuery {
	t.Helper()
	table, ok := m.TableByDbName(name)
	require.True(t, ok)
	return query.New(table, table.GraphQLName).SelectAll()
}

func mustColumn(t *testing.T, table *model.Table, name string) *model.Column {
	t.Helper()
	col, ok := table.ColumnByDbName(name)
	require.True(t, ok)
	return col
}

func TestTenantFilteredQuerySQLServer(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	m := storeModel(t, dialect.SQLServer, bundle)

	orders, _ := m.TableByDbName("Orders")
	q := query.New(orders, orders.GraphQLName)
	q.Columns = []*model.Column{mustColumn(t, orders, "Id"), mustColumn(t, orders, "Total")}
	q.Limit = dialect.NoLimit

	err := transform.DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 42})
	require.NoError(t, err)

	sqlMap, err := Translate(q, m, dialect.SQLServer)
	require.NoError(t, err)
	stmt := sqlMap[q.Path]
	require.NotNil(t, stmt)

	assert.Equal(t,
		"SELECT [dbo].[Orders].[Id], [dbo].[Orders].[Total] FROM [dbo].[Orders] WHERE [Orders].[tenant_id] = @p1",
		stmt.SQL)
	assert.Equal(t, []interface{}{42}, stmt.Args)
	assert.NotContains(t, stmt.SQL, "42")
}

func TestNoFiltersEmitsNoWhere(t *testing.T) {
	m := storeModel(t, dialect.Postgres, metadata.NewBundle())
	q := tableQuery(t, m, "Orders")

	err := transform.DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{})
	require.NoError(t, err)
	require.Nil(t, q.Filter)

	sqlMap, err := Translate(q, m, dialect.Postgres)
	require.NoError(t, err)
	assert.NotContains(t, sqlMap[q.Path].SQL, "WHERE")
}

func TestUserValuesNeverInlined(t *testing.T) {
	hostile := `alice'; DROP TABLE Orders; --`
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())

	q := tableQuery(t, m, "Users")
	q.SetUserFilter(query.NewLeaf("Users", "Name", dialect.OpEq, hostile))

	sqlMap, err := Translate(q, m, dialect.MySQL)
	require.NoError(t, err)
	stmt := sqlMap[q.Path]
	assert.NotContains(t, stmt.SQL, "alice")
	assert.Contains(t, stmt.Args, hostile)
}

func TestTenantAndSoftDeleteTogether(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	bundle.SetTable("dbo", "Orders", metadata.KeySoftDelete, "deleted_at")
	m := storeModel(t, dialect.Postgres, bundle)

	q := tableQuery(t, m, "Orders")
	err := transform.DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 7})
	require.NoError(t, err)

	sqlMap, err := Translate(q, m, dialect.Postgres)
	require.NoError(t, err)
	stmt := sqlMap[q.Path]
	assert.Contains(t, stmt.SQL, `"tenant_id"`)
	assert.Contains(t, stmt.SQL, `"deleted_at" IS NULL`)
}

func TestCrossDialectParameterEquivalence(t *testing.T) {
	type rendered struct {
		name string
		stmt *Statement
	}
	var unpaged, paged []rendered

	for _, d := range dialect.All() {
		bundle := metadata.NewBundle()
		bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
		m := storeModel(t, d, bundle)

		q := tableQuery(t, m, "Orders")
		q.Limit = dialect.NoLimit
		err := transform.DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 42})
		require.NoError(t, err)
		sqlMap, err := Translate(q, m, d)
		require.NoError(t, err)
		unpaged = append(unpaged, rendered{d.Name(), sqlMap[q.Path]})

		q2 := tableQuery(t, m, "Orders")
		q2.Limit = 10
		q2.Offset = 5
		err = transform.DefaultQueryTransformers().ApplyTransformers(q2, m, usercontext.Map{"tenant_id": 42})
		require.NoError(t, err)
		sqlMap2, err := Translate(q2, m, d)
		require.NoError(t, err)
		paged = append(paged, rendered{d.Name(), sqlMap2[q2.Path]})
	}

	want := []interface{}{42}
	for _, r := range unpaged {
		assert.Equal(t, want, r.stmt.Args, "dialect %s", r.name)
		assert.NotContains(t, r.stmt.SQL, "42", "dialect %s", r.name)
	}
	// Paging syntax reorders limit and offset between engines; the bound
	// values must still agree.
	wantPaged := []interface{}{42, 10, 5}
	for _, r := range paged {
		assert.ElementsMatch(t, wantPaged, r.stmt.Args, "dialect %s", r.name)
	}
}

func TestFilterSerialization(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())

	tests := []struct {
		name     string
		filter   query.Filter
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			"equality",
			query.NewLeaf("Users", "Name", dialect.OpEq, "alice"),
			"WHERE `Users`.`Name` = ?",
			[]interface{}{"alice"},
		},
		{
			"null equality is IS NULL",
			query.NewLeaf("Users", "deleted_at", dialect.OpEq, nil),
			"WHERE `Users`.`deleted_at` IS NULL",
			nil,
		},
		{
			"null inequality is IS NOT NULL",
			query.NewLeaf("Users", "deleted_at", dialect.OpNeq, nil),
			"WHERE `Users`.`deleted_at` IS NOT NULL",
			nil,
		},
		{
			"in list",
			query.NewLeaf("Users", "Id", dialect.OpIn, []interface{}{1, 2, 3}),
			"WHERE `Users`.`Id` IN (?, ?, ?)",
			[]interface{}{1, 2, 3},
		},
		{
			"empty in list matches nothing",
			query.NewLeaf("Users", "Id", dialect.OpIn, []interface{}{}),
			"WHERE (1 = 0)",
			nil,
		},
		{
			"between",
			query.NewLeaf("Users", "Id", dialect.OpBetween, []interface{}{10, 20}),
			"WHERE `Users`.`Id` BETWEEN ? AND ?",
			[]interface{}{10, 20},
		},
		{
			"contains",
			query.NewLeaf("Users", "Name", dialect.OpContains, "li"),
			"WHERE `Users`.`Name` LIKE CONCAT('%', ?, '%')",
			[]interface{}{"li"},
		},
		{
			"or is parenthesized",
			query.NewOr(
				query.NewLeaf("Users", "Name", dialect.OpEq, "alice"),
				query.NewLeaf("Users", "Name", dialect.OpEq, "bob"),
			),
			"WHERE (`Users`.`Name` = ? OR `Users`.`Name` = ?)",
			[]interface{}{"alice", "bob"},
		},
		{
			"nested and of or",
			query.NewAnd(
				query.NewLeaf("Users", "Id", dialect.OpGt, 5),
				query.NewOr(
					query.NewLeaf("Users", "Name", dialect.OpStartsWith, "a"),
					query.NewLeaf("Users", "Name", dialect.OpEndsWith, "z"),
				),
			),
			"WHERE (`Users`.`Id` > ? AND (`Users`.`Name` LIKE CONCAT(?, '%') OR `Users`.`Name` LIKE CONCAT('%', ?)))",
			[]interface{}{5, "a", "z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tableQuery(t, m, "Users")
			q.Limit = dialect.NoLimit
			q.SetUserFilter(tt.filter)

			sqlMap, err := Translate(q, m, dialect.MySQL)
			require.NoError(t, err)
			stmt := sqlMap[q.Path]
			assert.Contains(t, stmt.SQL, tt.wantSQL)
			assert.Equal(t, tt.wantArgs, stmt.Args)
		})
	}
}

func TestBinaryUUIDColumnsBindAsBytes(t *testing.T) {
	data := schemareader.NewSchemaData()
	data.Tables = []schemareader.RawTable{
		{Catalog: "store", Schema: "dbo", Name: "Devices", Type: schemareader.TableTypeBase},
	}
	data.Columns = []schemareader.RawColumn{
		{Catalog: "store", Schema: "dbo", Table: "Devices", Name: "Id", Ordinal: 1, DataType: "binary(16)"},
		{Catalog: "store", Schema: "dbo", Table: "Devices", Name: "Name", Ordinal: 2, DataType: "varchar(100)", IsNullable: true},
	}
	m, err := model.Build(data, dialect.MySQL, metadata.NewBundle(), nil, nil)
	require.NoError(t, err)
	devices, ok := m.TableByDbName("Devices")
	require.True(t, ok)

	const id = "550e8400-e29b-41d4-a716-446655440000"

	q := query.New(devices, devices.GraphQLName).SelectAll()
	q.Limit = dialect.NoLimit
	q.SetUserFilter(query.NewLeaf("Devices", "Id", dialect.OpEq, id))

	sqlMap, err := Translate(q, m, dialect.MySQL)
	require.NoError(t, err)
	stmt := sqlMap[q.Path]
	require.Len(t, stmt.Args, 1)
	assert.IsType(t, []byte{}, stmt.Args[0])
	assert.Len(t, stmt.Args[0], 16)

	ins, err := Insert(devices, dialect.MySQL, map[string]interface{}{"Id": id, "Name": "sensor"})
	require.NoError(t, err)
	assert.IsType(t, []byte{}, ins.Args[0])
	assert.Equal(t, "sensor", ins.Args[1])
}

func TestSQLiteLikeUsesConcatenationOperator(t *testing.T) {
	m := storeModel(t, dialect.SQLite, metadata.NewBundle())
	q := tableQuery(t, m, "Users")
	q.Limit = dialect.NoLimit
	q.SetUserFilter(query.NewLeaf("Users", "Name", dialect.OpContains, "li"))

	sqlMap, err := Translate(q, m, dialect.SQLite)
	require.NoError(t, err)
	assert.Contains(t, sqlMap[q.Path].SQL, "LIKE '%' || ? || '%'")
}

func TestFilterColumnNotFound(t *testing.T) {
	m := storeModel(t, dialect.Postgres, metadata.NewBundle())
	q := tableQuery(t, m, "Users")
	q.SetUserFilter(query.NewLeaf("Users", "no_such", dialect.OpEq, 1))

	_, err := Translate(q, m, dialect.Postgres)
	require.Error(t, err)
	assert.Equal(t, execerr.CodeColumnNotFound, execerr.CodeOf(err))
	assert.Contains(t, err.Error(), "no_such")
}

func TestSortAndPagination(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())
	q := tableQuery(t, m, "Orders")
	q.Sort = []query.SortKey{
		query.ParseSortKey("Total_DESC"),
		query.ParseSortKey("Id_ASC"),
	}
	q.Limit = 25
	q.Offset = 50

	sqlMap, err := Translate(q, m, dialect.MySQL)
	require.NoError(t, err)
	stmt := sqlMap[q.Path]
	assert.Contains(t, stmt.SQL, "ORDER BY `Total` DESC, `Id` ASC")
	assert.Contains(t, stmt.SQL, "LIMIT ? OFFSET ?")
	assert.Equal(t, []interface{}{25, 50}, stmt.Args)
}

func TestSQLServerDefaultPagination(t *testing.T) {
	m := storeModel(t, dialect.SQLServer, metadata.NewBundle())
	q := tableQuery(t, m, "Orders")

	sqlMap, err := Translate(q, m, dialect.SQLServer)
	require.NoError(t, err)
	stmt := sqlMap[q.Path]
	assert.Contains(t, stmt.SQL, "ORDER BY (SELECT NULL) OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY")
	assert.Equal(t, []interface{}{0, dialect.DefaultLimit}, stmt.Args)
}

func TestSortColumnValidated(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())
	q := tableQuery(t, m, "Orders")
	q.Sort = []query.SortKey{{Column: "bogus"}}

	_, err := Translate(q, m, dialect.MySQL)
	require.Error(t, err)
	assert.Equal(t, execerr.CodeColumnNotFound, execerr.CodeOf(err))
}

func TestBulkLoaderChildStatement(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())
	users, _ := m.TableByDbName("Users")
	orders, _ := m.TableByDbName("Orders")

	link, ok := users.MultiLinks[orders.GraphQLName]
	require.True(t, ok, "expected multi-link %q on Users", orders.GraphQLName)

	q := query.New(users, users.GraphQLName).SelectAll()
	q.Limit = 2
	child := query.New(orders, "").SelectAll()
	child.Limit = dialect.NoLimit
	q.AddJoin(link, child)

	sqlMap, err := Translate(q, m, dialect.MySQL)
	require.NoError(t, err)
	require.Len(t, sqlMap, 2)

	childPath := q.Path + "/" + link.Name
	stmt := sqlMap[childPath]
	require.NotNil(t, stmt, "missing child statement at %q", childPath)

	assert.Contains(t, stmt.SQL, "`dbo`.`Orders`.`user_id` IN (SELECT `src`.`Id` FROM (")
	assert.Contains(t, stmt.SQL, ") AS `src`)")
	// The parent's page restricts child membership, so its paging values
	// ride along inside the subquery.
	assert.Contains(t, stmt.SQL, "LIMIT ? OFFSET ?")
	assert.Equal(t, []interface{}{2, 0}, stmt.Args)
}

func TestBulkLoaderSingleLinkAscends(t *testing.T) {
	m := storeModel(t, dialect.Postgres, metadata.NewBundle())
	users, _ := m.TableByDbName("Users")
	orders, _ := m.TableByDbName("Orders")

	link, ok := orders.SingleLinks[users.GraphQLName]
	require.True(t, ok, "expected single link %q on Orders", users.GraphQLName)

	q := query.New(orders, orders.GraphQLName).SelectAll()
	q.Limit = dialect.NoLimit
	parent := query.New(users, "").SelectAll()
	parent.Limit = dialect.NoLimit
	parent.Kind = query.ClassSingle
	q.AddJoin(link, parent)

	sqlMap, err := Translate(q, m, dialect.Postgres)
	require.NoError(t, err)
	stmt := sqlMap[q.Path+"/"+link.Name]
	require.NotNil(t, stmt)
	assert.Contains(t, stmt.SQL, `"dbo"."Users"."Id" IN (SELECT "src"."user_id" FROM (`)
}

func TestBulkLoaderUnpagedParentSkipsSubqueryOrdering(t *testing.T) {
	m := storeModel(t, dialect.SQLServer, metadata.NewBundle())
	users, _ := m.TableByDbName("Users")
	orders, _ := m.TableByDbName("Orders")
	link := users.MultiLinks[orders.GraphQLName]
	require.NotNil(t, link)

	q := query.New(users, users.GraphQLName).SelectAll()
	q.Limit = dialect.NoLimit
	q.Sort = []query.SortKey{{Column: "Name"}}
	child := query.New(orders, "").SelectAll()
	child.Limit = dialect.NoLimit
	q.AddJoin(link, child)

	sqlMap, err := Translate(q, m, dialect.SQLServer)
	require.NoError(t, err)
	stmt := sqlMap[q.Path+"/"+link.Name]
	require.NotNil(t, stmt)
	// Membership does not depend on order, and SQL Server rejects ORDER BY
	// in an unpaged subquery.
	assert.NotContains(t, stmt.SQL, "ORDER BY")
}

func TestAggregateCount(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	m := storeModel(t, dialect.Postgres, bundle)

	q := tableQuery(t, m, "Orders")
	q.Kind = query.ClassAggregate
	err := transform.DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 3})
	require.NoError(t, err)

	sqlMap, err := Translate(q, m, dialect.Postgres)
	require.NoError(t, err)
	stmt := sqlMap[q.Path]
	assert.True(t, strings.HasPrefix(stmt.SQL, `SELECT COUNT(*) AS "count" FROM`), stmt.SQL)
	assert.NotContains(t, stmt.SQL, "ORDER BY")
	assert.NotContains(t, stmt.SQL, "LIMIT")
	assert.Equal(t, []interface{}{3}, stmt.Args)
}

func TestTransformersApplyToJoinedChild(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	m := storeModel(t, dialect.MySQL, bundle)
	users, _ := m.TableByDbName("Users")
	orders, _ := m.TableByDbName("Orders")
	link := users.MultiLinks[orders.GraphQLName]
	require.NotNil(t, link)

	q := query.New(users, users.GraphQLName).SelectAll()
	child := query.New(orders, "").SelectAll()
	child.Limit = dialect.NoLimit
	q.AddJoin(link, child)

	err := transform.DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 9})
	require.NoError(t, err)

	sqlMap, err := Translate(q, m, dialect.MySQL)
	require.NoError(t, err)
	stmt := sqlMap[q.Path+"/"+link.Name]
	assert.Contains(t, stmt.SQL, "`Orders`.`tenant_id` = ?")
	assert.Contains(t, stmt.Args, 9)
}

func TestInsertStatement(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	stmt, err := Insert(orders, dialect.MySQL, map[string]interface{}{
		"Total":     150,
		"tenant_id": 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `dbo`.`Orders` (`Total`,`tenant_id`) VALUES (?,?)", stmt.SQL)
	assert.Equal(t, []interface{}{150, 4}, stmt.Args)
}

func TestInsertPlaceholdersFollowDialect(t *testing.T) {
	m := storeModel(t, dialect.SQLServer, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	stmt, err := Insert(orders, dialect.SQLServer, map[string]interface{}{"Total": 1, "tenant_id": 2})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "VALUES (@p1,@p2)")
}

func TestInsertRejectsUnknownColumn(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	_, err := Insert(orders, dialect.MySQL, map[string]interface{}{"nope": 1})
	require.Error(t, err)
	assert.Equal(t, execerr.CodeColumnNotFound, execerr.CodeOf(err))
}

func TestInsertRequiresColumns(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	_, err := Insert(orders, dialect.MySQL, map[string]interface{}{})
	require.Error(t, err)
}

func TestUpdateStatement(t *testing.T) {
	m := storeModel(t, dialect.Postgres, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	pk, err := PrimaryKeyFilter(orders, map[string]interface{}{"Id": 10})
	require.NoError(t, err)

	stmt, err := Update(orders, dialect.Postgres, map[string]interface{}{"Total": 99}, pk)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "dbo"."Orders" SET "Total" = $1 WHERE "Orders"."Id" = $2`, stmt.SQL)
	assert.Equal(t, []interface{}{99, 10}, stmt.Args)
}

func TestUpdateRequiresFilter(t *testing.T) {
	m := storeModel(t, dialect.Postgres, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	_, err := Update(orders, dialect.Postgres, map[string]interface{}{"Total": 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a row filter")
}

func TestDeleteStatement(t *testing.T) {
	m := storeModel(t, dialect.SQLite, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	pk, err := PrimaryKeyFilter(orders, map[string]interface{}{"Id": 3})
	require.NoError(t, err)

	stmt, err := Delete(orders, dialect.SQLite, pk)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `dbo`.`Orders` WHERE `Orders`.`Id` = ?", stmt.SQL)
	assert.Equal(t, []interface{}{3}, stmt.Args)
}

func TestDeleteRequiresFilter(t *testing.T) {
	m := storeModel(t, dialect.SQLite, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	_, err := Delete(orders, dialect.SQLite, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a row filter")
}

func TestPrimaryKeyFilterRequiresEveryColumn(t *testing.T) {
	m := storeModel(t, dialect.MySQL, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")

	_, err := PrimaryKeyFilter(orders, map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Id")
}

func TestIdentityQueryPerDialect(t *testing.T) {
	for _, tt := range []struct {
		d    dialect.Dialect
		want string
	}{
		{dialect.SQLServer, "SELECT SCOPE_IDENTITY()"},
		{dialect.Postgres, "SELECT LASTVAL()"},
		{dialect.MySQL, "SELECT LAST_INSERT_ID()"},
		{dialect.SQLite, "SELECT last_insert_rowid()"},
	} {
		assert.Equal(t, tt.want, IdentityQuery(tt.d), tt.d.Name())
	}
}

func TestStatementsRegenerateIdentically(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	m := storeModel(t, dialect.Postgres, bundle)

	build := func() *Statement {
		q := tableQuery(t, m, "Orders")
		err := transform.DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 42})
		require.NoError(t, err)
		sqlMap, err := Translate(q, m, dialect.Postgres)
		require.NoError(t, err)
		return sqlMap[q.Path]
	}

	first := build()
	second := build()
	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, fmt.Sprint(first.Args), fmt.Sprint(second.Args))
}
