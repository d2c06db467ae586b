package schemareader

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"bifrost-graphql/internal/dialect"
)

func TestNewReaderPerDialect(t *testing.T) {
	for _, d := range dialect.All() {
		r, err := New(d)
		if err != nil {
			t.Fatalf("New(%s): %v", d.Name(), err)
		}
		if r == nil {
			t.Fatalf("New(%s) returned nil reader", d.Name())
		}
	}
}

func TestMySQLReadSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT DATABASE").
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow("bookstore"))

	mock.ExpectQuery("FROM information_schema.TABLES").
		WithArgs("bookstore").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).
			AddRow("authors", "BASE TABLE").
			AddRow("books", "BASE TABLE").
			AddRow("books_view", "VIEW"))

	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WithArgs("bookstore").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "ORDINAL_POSITION", "COLUMN_TYPE", "IS_NULLABLE", "EXTRA"}).
			AddRow("authors", "id", 1, "int", "NO", "auto_increment").
			AddRow("authors", "name", 2, "varchar(100)", "NO", "").
			AddRow("books", "id", 1, "int", "NO", "auto_increment").
			AddRow("books", "author_id", 2, "int", "YES", ""))

	mock.ExpectQuery("CONSTRAINT_TYPE = 'PRIMARY KEY'").
		WithArgs("bookstore").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "CONSTRAINT_NAME"}).
			AddRow("authors", "id", "PRIMARY").
			AddRow("books", "id", "PRIMARY"))

	mock.ExpectQuery("REFERENCED_TABLE_NAME IS NOT NULL").
		WithArgs("bookstore").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "CONSTRAINT_NAME", "REFERENCED_TABLE_SCHEMA", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}).
			AddRow("books", "author_id", "fk_books_author", "bookstore", "authors", "id"))

	mock.ExpectQuery("FROM information_schema.ROUTINES").
		WithArgs("bookstore").
		WillReturnRows(sqlmock.NewRows([]string{"ROUTINE_NAME"}).
			AddRow("count_books"))

	mock.ExpectQuery("FROM information_schema.PARAMETERS").
		WithArgs("bookstore", "count_books").
		WillReturnRows(sqlmock.NewRows([]string{"PARAMETER_NAME", "ORDINAL_POSITION", "DTD_IDENTIFIER", "PARAMETER_MODE"}).
			AddRow("author", 1, "int", "IN").
			AddRow("total", 2, "int", "OUT"))

	reader, err := New(dialect.MySQL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := reader.ReadSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}

	if len(data.Tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(data.Tables))
	}
	if data.Tables[2].Type != TableTypeView {
		t.Errorf("expected books_view to be a view, got %s", data.Tables[2].Type)
	}
	if data.Tables[0].Schema != "bookstore" {
		t.Errorf("expected schema bookstore, got %s", data.Tables[0].Schema)
	}

	if len(data.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(data.Columns))
	}
	if !data.Columns[0].IsIdentity {
		t.Error("authors.id should be identity")
	}
	if data.Columns[1].IsIdentity {
		t.Error("authors.name should not be identity")
	}
	if !data.Columns[3].IsNullable {
		t.Error("books.author_id should be nullable")
	}
	if data.Columns[1].DataType != "varchar(100)" {
		t.Errorf("expected declared type varchar(100), got %s", data.Columns[1].DataType)
	}

	pkRef := ColumnRef{Catalog: "def", Schema: "bookstore", Table: "authors", Column: "id"}
	if got := data.Constraints[pkRef]; len(got) != 1 || got[0].Type != ConstraintPrimaryKey {
		t.Errorf("expected PK constraint on authors.id, got %#v", got)
	}

	fkRef := ColumnRef{Catalog: "def", Schema: "bookstore", Table: "books", Column: "author_id"}
	fks := data.Constraints[fkRef]
	if len(fks) != 1 || fks[0].Type != ConstraintForeignKey {
		t.Fatalf("expected FK constraint on books.author_id, got %#v", fks)
	}
	if fks[0].References == nil || fks[0].References.Table != "authors" || fks[0].References.Column != "id" {
		t.Errorf("unexpected FK target: %#v", fks[0].References)
	}

	if len(data.Procedures) != 1 {
		t.Fatalf("expected 1 procedure, got %d", len(data.Procedures))
	}
	proc := data.Procedures[0]
	if proc.Name != "count_books" || len(proc.Params) != 2 {
		t.Fatalf("unexpected procedure: %#v", proc)
	}
	if proc.Params[0].Direction != DirectionInput || proc.Params[1].Direction != DirectionOutput {
		t.Errorf("unexpected parameter directions: %#v", proc.Params)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLReadSchemaNoDatabaseSelected(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT DATABASE").
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow(nil))

	reader, _ := New(dialect.MySQL)
	if _, err := reader.ReadSchema(context.Background(), db); err == nil {
		t.Fatal("expected error when no database is selected")
	}
}

func TestSQLiteReadSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	listCols := []string{"schema", "name", "type", "ncol", "wr", "strict"}
	mock.ExpectQuery("PRAGMA table_list").
		WillReturnRows(sqlmock.NewRows(listCols).
			AddRow("main", "authors", "table", 2, 0, 0).
			AddRow("main", "books", "table", 3, 0, 0).
			AddRow("main", "order_items", "table", 2, 0, 0).
			AddRow("main", "sqlite_sequence", "table", 2, 0, 0).
			AddRow("temp", "scratch", "table", 1, 0, 0))

	infoCols := []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}
	mock.ExpectQuery("PRAGMA table_info").
		WillReturnRows(sqlmock.NewRows(infoCols).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "name", "TEXT", 1, nil, 0))
	mock.ExpectQuery("PRAGMA table_info").
		WillReturnRows(sqlmock.NewRows(infoCols).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "title", "TEXT", 1, nil, 0).
			AddRow(2, "author_id", "INTEGER", 0, nil, 0))
	mock.ExpectQuery("PRAGMA table_info").
		WillReturnRows(sqlmock.NewRows(infoCols).
			AddRow(0, "order_id", "INTEGER", 1, nil, 1).
			AddRow(1, "line_no", "INTEGER", 1, nil, 2))

	fkCols := []string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}
	mock.ExpectQuery("PRAGMA foreign_key_list").
		WillReturnRows(sqlmock.NewRows(fkCols))
	mock.ExpectQuery("PRAGMA foreign_key_list").
		WillReturnRows(sqlmock.NewRows(fkCols).
			AddRow(0, 0, "authors", "author_id", nil, "NO ACTION", "NO ACTION", "NONE"))
	mock.ExpectQuery("PRAGMA foreign_key_list").
		WillReturnRows(sqlmock.NewRows(fkCols))

	reader, err := New(dialect.SQLite)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := reader.ReadSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}

	if len(data.Tables) != 3 {
		t.Fatalf("expected sqlite_sequence and temp tables skipped, got %d tables", len(data.Tables))
	}

	byName := make(map[string]RawColumn)
	for _, c := range data.Columns {
		byName[c.Table+"."+c.Name] = c
	}
	if !byName["authors.id"].IsIdentity {
		t.Error("authors.id is a rowid alias and should be identity")
	}
	if byName["order_items.order_id"].IsIdentity || byName["order_items.line_no"].IsIdentity {
		t.Error("composite PK columns must not be identity")
	}
	if byName["books.author_id"].IsNullable != true {
		t.Error("books.author_id should be nullable")
	}

	// NULL "to" resolves to the parent PK.
	fkRef := ColumnRef{Catalog: "main", Schema: "main", Table: "books", Column: "author_id"}
	fks := data.Constraints[fkRef]
	if len(fks) != 1 || fks[0].References == nil {
		t.Fatalf("expected resolved FK on books.author_id, got %#v", fks)
	}
	if fks[0].References.Column != "id" {
		t.Errorf("expected FK target column id, got %s", fks[0].References.Column)
	}

	if len(data.Procedures) != 0 {
		t.Errorf("sqlite should report no procedures, got %d", len(data.Procedures))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestComposeSQLServerType(t *testing.T) {
	n := func(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} }
	none := sql.NullInt64{}

	tests := []struct {
		dataType  string
		charLen   sql.NullInt64
		precision sql.NullInt64
		scale     sql.NullInt64
		want      string
	}{
		{"varchar", n(100), none, none, "varchar(100)"},
		{"nvarchar", n(-1), none, none, "nvarchar(max)"},
		{"decimal", none, n(10), n(2), "decimal(10,2)"},
		{"numeric", none, n(18), n(0), "numeric(18,0)"},
		{"int", none, n(10), n(0), "int"},
		{"datetime2", none, none, none, "datetime2"},
		{"varbinary", n(-1), none, none, "varbinary(max)"},
	}
	for _, tt := range tests {
		if got := composeSQLServerType(tt.dataType, tt.charLen, tt.precision, tt.scale); got != tt.want {
			t.Errorf("composeSQLServerType(%s) = %q, want %q", tt.dataType, got, tt.want)
		}
	}
}

func TestSQLServerReadSchemaForeignKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_CATALOG", "TABLE_SCHEMA", "TABLE_NAME", "TABLE_TYPE"}).
			AddRow("shop", "dbo", "authors", "BASE TABLE").
			AddRow("shop", "dbo", "books", "BASE TABLE"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_CATALOG", "TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME",
			"ORDINAL_POSITION", "DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE",
			"IS_NULLABLE", "IS_IDENTITY"}).
			AddRow("shop", "dbo", "authors", "id", 1, "int", nil, 10, 0, "NO", 1).
			AddRow("shop", "dbo", "authors", "name", 2, "nvarchar", 200, nil, nil, "NO", 0).
			AddRow("shop", "dbo", "books", "id", 1, "int", nil, 10, 0, "NO", 1).
			AddRow("shop", "dbo", "books", "author_id", 2, "int", nil, 10, 0, "YES", 0))

	mock.ExpectQuery("CONSTRAINT_TYPE = 'PRIMARY KEY'").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_CATALOG", "TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME", "CONSTRAINT_NAME"}).
			AddRow("shop", "dbo", "authors", "id", "PK_authors").
			AddRow("shop", "dbo", "books", "id", "PK_books"))

	mock.ExpectQuery("FROM sys.foreign_key_columns").
		WillReturnRows(sqlmock.NewRows([]string{"db", "fk", "schema", "table", "column", "ref_schema", "ref_table", "ref_column"}).
			AddRow("shop", "FK_books_authors", "dbo", "books", "author_id", "dbo", "authors", "id"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.ROUTINES").
		WillReturnRows(sqlmock.NewRows([]string{"ROUTINE_CATALOG", "ROUTINE_SCHEMA", "ROUTINE_NAME"}).
			AddRow("shop", "dbo", "GetBookCount"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.PARAMETERS").
		WithArgs("dbo", "GetBookCount").
		WillReturnRows(sqlmock.NewRows([]string{"PARAMETER_NAME", "ORDINAL_POSITION", "DATA_TYPE",
			"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE", "PARAMETER_MODE"}).
			AddRow("@AuthorId", 1, "int", nil, 10, 0, "IN"))

	reader, err := New(dialect.SQLServer)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := reader.ReadSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}

	if data.Columns[1].DataType != "nvarchar(200)" {
		t.Errorf("expected composed type nvarchar(200), got %s", data.Columns[1].DataType)
	}
	if !data.Columns[0].IsIdentity {
		t.Error("authors.id should be identity")
	}

	fkRef := ColumnRef{Catalog: "shop", Schema: "dbo", Table: "books", Column: "author_id"}
	fks := data.Constraints[fkRef]
	if len(fks) != 1 || fks[0].References == nil || fks[0].References.Table != "authors" {
		t.Fatalf("unexpected FK constraints: %#v", fks)
	}

	if len(data.Procedures) != 1 {
		t.Fatalf("expected 1 procedure, got %d", len(data.Procedures))
	}
	if got := data.Procedures[0].Params[0].Name; got != "AuthorId" {
		t.Errorf("expected @ prefix stripped from parameter, got %q", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresReadSchemaIdentityAndArrays(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_catalog", "table_schema", "table_name", "table_type"}).
			AddRow("shop", "public", "authors", "BASE TABLE"))

	mock.ExpectQuery("FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_catalog", "table_schema", "table_name", "column_name",
			"ordinal_position", "data_type", "udt_name", "is_nullable", "is_identity", "column_default"}).
			AddRow("shop", "public", "authors", "id", 1, "integer", "int4", "NO", "NO", "nextval('authors_id_seq'::regclass)").
			AddRow("shop", "public", "authors", "alt_id", 2, "integer", "int4", "NO", "YES", nil).
			AddRow("shop", "public", "authors", "tags", 3, "ARRAY", "_text", "YES", "NO", nil).
			AddRow("shop", "public", "authors", "name", 4, "character varying", "varchar", "NO", "NO", nil))

	mock.ExpectQuery("PRIMARY KEY").
		WillReturnRows(sqlmock.NewRows([]string{"table_catalog", "table_schema", "table_name", "column_name", "constraint_name"}).
			AddRow("shop", "public", "authors", "id", "authors_pkey"))

	mock.ExpectQuery("FOREIGN KEY").
		WillReturnRows(sqlmock.NewRows([]string{"table_catalog", "table_schema", "table_name", "column_name", "constraint_name",
			"ref_schema", "ref_table", "ref_column"}))

	mock.ExpectQuery("FROM information_schema.routines").
		WillReturnRows(sqlmock.NewRows([]string{"routine_catalog", "routine_schema", "routine_name", "specific_name"}).
			AddRow("shop", "public", "author_count", "author_count_16395"))

	mock.ExpectQuery("FROM information_schema.parameters").
		WithArgs("public", "author_count_16395").
		WillReturnRows(sqlmock.NewRows([]string{"parameter_name", "ordinal_position", "data_type", "udt_name", "parameter_mode"}).
			AddRow("min_books", 1, "integer", "int4", "IN"))

	reader, err := New(dialect.Postgres)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := reader.ReadSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}

	if !data.Columns[0].IsIdentity {
		t.Error("serial column with nextval default should be identity")
	}
	if !data.Columns[1].IsIdentity {
		t.Error("declared identity column should be identity")
	}
	if data.Columns[2].DataType != "_text" {
		t.Errorf("array column should surface udt_name, got %s", data.Columns[2].DataType)
	}
	if data.Columns[3].DataType != "character varying" {
		t.Errorf("scalar column should keep data_type, got %s", data.Columns[3].DataType)
	}

	if len(data.Procedures) != 1 || data.Procedures[0].Name != "author_count" {
		t.Fatalf("unexpected procedures: %#v", data.Procedures)
	}
	if data.Procedures[0].Params[0].Name != "min_books" {
		t.Errorf("unexpected parameter: %#v", data.Procedures[0].Params[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQuoteSQLiteLiteral(t *testing.T) {
	if got := quoteSQLiteLiteral("books"); got != "'books'" {
		t.Errorf("got %q", got)
	}
	if got := quoteSQLiteLiteral("it's"); got != "'it''s'" {
		t.Errorf("got %q", got)
	}
}
