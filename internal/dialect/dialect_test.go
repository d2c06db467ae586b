package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeIdentifier(t *testing.T) {
	tests := []struct {
		d    Dialect
		want string
	}{
		{SQLServer, "[tenant_id]"},
		{Postgres, `"tenant_id"`},
		{MySQL, "`tenant_id`"},
		{SQLite, "`tenant_id`"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.EscapeIdentifier("tenant_id"))
		})
	}
}

func TestEscapeIdentifierDoublesClosingQuote(t *testing.T) {
	assert.Equal(t, "[we]]ird]", SQLServer.EscapeIdentifier("we]ird"))
	assert.Equal(t, `"we""ird"`, Postgres.EscapeIdentifier(`we"ird`))
	assert.Equal(t, "`we``ird`", MySQL.EscapeIdentifier("we`ird"))
	assert.Equal(t, "`we``ird`", SQLite.EscapeIdentifier("we`ird"))
}

func TestTableReference(t *testing.T) {
	assert.Equal(t, "[dbo].[Orders]", SQLServer.TableReference("dbo", "Orders"))
	assert.Equal(t, `"public"."orders"`, Postgres.TableReference("public", "orders"))
	assert.Equal(t, "`mydb`.`orders`", MySQL.TableReference("mydb", "orders"))
	assert.Equal(t, "`main`.`orders`", SQLite.TableReference("main", "orders"))

	for _, d := range All() {
		assert.Equal(t, d.EscapeIdentifier("orders"), d.TableReference("", "orders"), d.Name())
	}
}

func TestOperatorMappingIsDialectIndependent(t *testing.T) {
	expected := map[string]string{
		OpEq:         "=",
		OpNeq:        "<>",
		OpGt:         ">",
		OpLt:         "<",
		OpGte:        ">=",
		OpLte:        "<=",
		OpIn:         "IN",
		OpContains:   "LIKE",
		OpStartsWith: "LIKE",
		OpEndsWith:   "LIKE",
		OpBetween:    "BETWEEN",
	}
	for _, d := range All() {
		for _, op := range Operators {
			got, err := d.Operator(op)
			require.NoError(t, err, "%s %s", d.Name(), op)
			assert.Equal(t, expected[op], got, "%s %s", d.Name(), op)
		}
		_, err := d.Operator("_like")
		assert.Error(t, err, d.Name())
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "CONCAT('%', @p1, '%')", SQLServer.LikePattern("@p1", MatchContains))
	assert.Equal(t, "CONCAT(@p1, '%')", SQLServer.LikePattern("@p1", MatchStartsWith))
	assert.Equal(t, "CONCAT('%', @p1)", SQLServer.LikePattern("@p1", MatchEndsWith))

	assert.Equal(t, "CONCAT('%', $1, '%')", Postgres.LikePattern("$1", MatchContains))
	assert.Equal(t, "CONCAT('%', ?, '%')", MySQL.LikePattern("?", MatchContains))

	assert.Equal(t, "'%' || ? || '%'", SQLite.LikePattern("?", MatchContains))
	assert.Equal(t, "? || '%'", SQLite.LikePattern("?", MatchStartsWith))
	assert.Equal(t, "'%' || ?", SQLite.LikePattern("?", MatchEndsWith))
}

func TestPaginationSQLServer(t *testing.T) {
	clause, args := SQLServer.Pagination([]string{"[total] DESC"}, 20, 10)
	assert.Equal(t, "ORDER BY [total] DESC OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", clause)
	assert.Equal(t, []interface{}{20, 10}, args)

	clause, args = SQLServer.Pagination(nil, 0, 100)
	assert.Equal(t, "ORDER BY (SELECT NULL) OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", clause)
	assert.Equal(t, []interface{}{0, 100}, args)

	clause, args = SQLServer.Pagination(nil, 20, NoLimit)
	assert.Equal(t, "ORDER BY (SELECT NULL) OFFSET ? ROWS", clause)
	assert.Equal(t, []interface{}{20}, args)

	clause, args = SQLServer.Pagination(nil, 0, NoLimit)
	assert.Equal(t, "", clause)
	assert.Empty(t, args)

	clause, args = SQLServer.Pagination([]string{"[id] ASC"}, 0, NoLimit)
	assert.Equal(t, "ORDER BY [id] ASC", clause)
	assert.Empty(t, args)
}

func TestPaginationLimitOffsetDialects(t *testing.T) {
	for _, d := range []Dialect{Postgres, MySQL, SQLite} {
		clause, args := d.Pagination([]string{"x ASC"}, 20, 10)
		assert.Equal(t, "ORDER BY x ASC LIMIT ? OFFSET ?", clause, d.Name())
		assert.Equal(t, []interface{}{10, 20}, args, d.Name())

		clause, args = d.Pagination(nil, 0, 100)
		assert.Equal(t, "LIMIT ? OFFSET ?", clause, d.Name())
		assert.Equal(t, []interface{}{100, 0}, args, d.Name())

		clause, args = d.Pagination(nil, 0, NoLimit)
		assert.Equal(t, "", clause, d.Name())
		assert.Empty(t, args, d.Name())
	}

	clause, args := Postgres.Pagination(nil, 5, NoLimit)
	assert.Equal(t, "LIMIT ALL OFFSET ?", clause)
	assert.Equal(t, []interface{}{5}, args)

	clause, args = MySQL.Pagination(nil, 5, NoLimit)
	assert.Equal(t, "LIMIT 18446744073709551615 OFFSET ?", clause)
	assert.Equal(t, []interface{}{5}, args)

	clause, args = SQLite.Pagination(nil, 5, NoLimit)
	assert.Equal(t, "LIMIT -1 OFFSET ?", clause)
	assert.Equal(t, []interface{}{5}, args)
}

func TestPaginationParameterCountsMatchAcrossDialects(t *testing.T) {
	cases := []struct{ offset, limit int }{
		{0, 100},
		{20, 10},
		{20, NoLimit},
		{0, NoLimit},
	}
	for _, tc := range cases {
		counts := make(map[int]bool)
		for _, d := range All() {
			_, args := d.Pagination([]string{"a ASC"}, tc.offset, tc.limit)
			counts[len(args)] = true
		}
		assert.Len(t, counts, 1, "offset=%d limit=%d", tc.offset, tc.limit)
	}
}

func TestLastInsertedIdentity(t *testing.T) {
	assert.Equal(t, "SCOPE_IDENTITY()", SQLServer.LastInsertedIdentity())
	assert.Equal(t, "LASTVAL()", Postgres.LastInsertedIdentity())
	assert.Equal(t, "LAST_INSERT_ID()", MySQL.LastInsertedIdentity())
	assert.Equal(t, "last_insert_rowid()", SQLite.LastInsertedIdentity())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "@p1", SQLServer.Placeholder(1))
	assert.Equal(t, "@p12", SQLServer.Placeholder(12))
	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "?", MySQL.Placeholder(7))
	assert.Equal(t, "?", SQLite.Placeholder(7))

	assert.Equal(t, "@", SQLServer.ParameterPrefix())
	assert.Equal(t, "$", Postgres.ParameterPrefix())
	assert.Equal(t, "@", MySQL.ParameterPrefix())
	assert.Equal(t, "@", SQLite.ParameterPrefix())
}

func TestProcedureCall(t *testing.T) {
	assert.Equal(t, "EXEC [dbo].[sp_totals] @p1, @p2",
		SQLServer.ProcedureCall("dbo", "sp_totals", []string{"@p1", "@p2"}))
	assert.Equal(t, "EXEC [dbo].[sp_ping]",
		SQLServer.ProcedureCall("dbo", "sp_ping", nil))
	assert.Equal(t, `SELECT * FROM "public"."order_totals"($1, $2)`,
		Postgres.ProcedureCall("public", "order_totals", []string{"$1", "$2"}))
	assert.Equal(t, "CALL `mydb`.`order_totals`(?, ?)",
		MySQL.ProcedureCall("mydb", "order_totals", []string{"?", "?"}))
	assert.Equal(t, "", SQLite.ProcedureCall("main", "anything", nil))
}

func TestIsDefaultSchema(t *testing.T) {
	assert.True(t, SQLServer.IsDefaultSchema("dbo"))
	assert.True(t, SQLServer.IsDefaultSchema("DBO"))
	assert.False(t, SQLServer.IsDefaultSchema("sales"))
	assert.True(t, Postgres.IsDefaultSchema("public"))
	assert.False(t, Postgres.IsDefaultSchema("audit"))
	assert.True(t, MySQL.IsDefaultSchema("anything"))
	assert.True(t, SQLite.IsDefaultSchema("main"))
	assert.False(t, SQLite.IsDefaultSchema("attached"))
}

func TestFromName(t *testing.T) {
	for name, want := range map[string]Dialect{
		"sqlserver":  SQLServer,
		"MSSQL":      SQLServer,
		"postgres":   Postgres,
		"postgresql": Postgres,
		"pgx":        Postgres,
		"mysql":      MySQL,
		"sqlite":     SQLite,
		"sqlite3":    SQLite,
	} {
		got, err := FromName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want.Name(), got.Name(), name)
	}

	_, err := FromName("oracle")
	assert.Error(t, err)
}
