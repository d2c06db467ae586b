package sqltype

import (
	"testing"

	"bifrost-graphql/internal/dialect"

	"github.com/stretchr/testify/assert"
)

func TestMapSQLServer(t *testing.T) {
	tests := []struct {
		declared string
		want     GraphQLType
	}{
		{"INT", TypeInt},
		{"bigint", TypeInt},
		{"TINYINT", TypeInt},
		{"BIT", TypeBoolean},
		{"DECIMAL(10,2)", TypeFloat},
		{"MONEY", TypeFloat},
		{"FLOAT", TypeFloat},
		{"NVARCHAR(100)", TypeString},
		{"DATETIME2", TypeString},
		{"UNIQUEIDENTIFIER", TypeString},
		{"VARBINARY(16)", TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(dialect.SQLServer, tt.declared))
		})
	}
}

func TestMapPostgres(t *testing.T) {
	tests := []struct {
		declared string
		want     GraphQLType
	}{
		{"integer", TypeInt},
		{"bigint", TypeInt},
		{"int8", TypeInt},
		{"boolean", TypeBoolean},
		{"numeric(12,4)", TypeFloat},
		{"double precision", TypeFloat},
		{"text", TypeString},
		{"character varying(255)", TypeString},
		{"uuid", TypeString},
		{"timestamp with time zone", TypeString},
		{"json", TypeJSON},
		{"jsonb", TypeJSON},
		{"integer[]", TypeJSON},
		{"_int4", TypeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(dialect.Postgres, tt.declared))
		})
	}
}

func TestMapMySQL(t *testing.T) {
	tests := []struct {
		declared string
		want     GraphQLType
	}{
		{"int", TypeInt},
		{"int unsigned", TypeInt},
		{"tinyint(1)", TypeBoolean},
		{"tinyint(4)", TypeInt},
		{"tinyint", TypeInt},
		{"bigint(20)", TypeInt},
		{"decimal(10,2)", TypeFloat},
		{"double", TypeFloat},
		{"varchar(100)", TypeString},
		{"datetime", TypeString},
		{"enum('a','b')", TypeString},
		{"json", TypeJSON},
		{"blob", TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(dialect.MySQL, tt.declared))
		})
	}
}

func TestMapSQLiteAffinity(t *testing.T) {
	tests := []struct {
		declared string
		want     GraphQLType
	}{
		{"INTEGER", TypeInt},
		{"INT", TypeInt},
		{"UNSIGNED BIG INT", TypeInt},
		{"TEXT", TypeString},
		{"VARCHAR(70)", TypeString},
		{"NVARCHAR(100)", TypeString},
		{"BLOB", TypeString},
		{"", TypeString},
		{"REAL", TypeFloat},
		{"DOUBLE", TypeFloat},
		{"DECIMAL(10,5)", TypeFloat},
		{"NUMERIC", TypeFloat},
		{"BOOLEAN", TypeBoolean},
		{"DATETIME", TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(dialect.SQLite, tt.declared))
		})
	}
}

func TestScalarAndFilterNames(t *testing.T) {
	assert.Equal(t, "Int", TypeInt.String())
	assert.Equal(t, "Float", TypeFloat.String())
	assert.Equal(t, "Boolean", TypeBoolean.String())
	assert.Equal(t, "String", TypeString.String())
	assert.Equal(t, "JSON", TypeJSON.String())

	assert.Equal(t, "IntFilter", TypeInt.FilterTypeName())
	assert.Equal(t, "FloatFilter", TypeFloat.FilterTypeName())
	assert.Equal(t, "BooleanFilter", TypeBoolean.FilterTypeName())
	assert.Equal(t, "StringFilter", TypeString.FilterTypeName())
	assert.Equal(t, "StringFilter", TypeJSON.FilterTypeName())
}
