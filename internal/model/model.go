// Package model holds the canonical in-memory schema built at startup:
// tables, columns, foreign-key links, stored procedures and the metadata
// attached to each node. A Model is immutable once built and is read
// concurrently by every request without synchronization.
package model

import (
	"strings"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/metadata"
	"bifrost-graphql/internal/schemareader"
	"bifrost-graphql/internal/sqltype"
	"bifrost-graphql/internal/usercontext"
)

// Table types as reported by the schema reader.
const (
	TableTypeBase = schemareader.TableTypeBase
	TableTypeView = schemareader.TableTypeView
)

// Model is the root of the canonical schema.
type Model struct {
	DatabaseName string
	Dialect      dialect.Dialect
	Metadata     metadata.Map

	tables    []*Table
	byDbName  map[string]*Table   // lower("schema.table")
	byBare    map[string][]*Table // lower("table")
	byGraphQL map[string]*Table   // case-sensitive full GraphQL name

	procedures  []*StoredProcedure
	procByName  map[string]*StoredProcedure // lower("schema.name")
	procByGQL   map[string]*StoredProcedure // case-sensitive
	procsByRoot map[bool][]*StoredProcedure // keyed by IsReadOnly
}

// Tables returns the ordered table list.
func (m *Model) Tables() []*Table {
	return m.tables
}

// TableByDbName looks a table up by database name, case-insensitively.
// Accepts "schema.table" or a bare table name; a bare name resolves when it
// is unambiguous, with the dialect's default schema breaking ties.
func (m *Model) TableByDbName(name string) (*Table, bool) {
	lower := strings.ToLower(name)
	if t, ok := m.byDbName[lower]; ok {
		return t, true
	}
	candidates := m.byBare[lower]
	switch len(candidates) {
	case 0:
		return nil, false
	case 1:
		return candidates[0], true
	default:
		for _, t := range candidates {
			if m.Dialect.IsDefaultSchema(t.Schema) {
				return t, true
			}
		}
		return nil, false
	}
}

// TableByGraphQLName looks a table up by its full GraphQL name,
// case-sensitively.
func (m *Model) TableByGraphQLName(name string) (*Table, bool) {
	t, ok := m.byGraphQL[name]
	return t, ok
}

// Procedures returns the ordered stored-procedure list.
func (m *Model) Procedures() []*StoredProcedure {
	return m.procedures
}

// ProceduresForRoot returns the procedures exposed on the query root
// (readonly=true) or the mutation root (readonly=false).
func (m *Model) ProceduresForRoot(readonly bool) []*StoredProcedure {
	return m.procsByRoot[readonly]
}

// ProcedureByGraphQLName looks a procedure up case-sensitively.
func (m *Model) ProcedureByGraphQLName(name string) (*StoredProcedure, bool) {
	p, ok := m.procByGQL[name]
	return p, ok
}

// ProcedureByDbName looks a procedure up by "schema.name" or bare name,
// case-insensitively.
func (m *Model) ProcedureByDbName(name string) (*StoredProcedure, bool) {
	lower := strings.ToLower(name)
	if p, ok := m.procByName[lower]; ok {
		return p, true
	}
	for _, p := range m.procedures {
		if strings.EqualFold(p.DbName, name) {
			return p, true
		}
	}
	return nil, false
}

// TenantContextKey is the user-context key carrying the tenant id.
func (m *Model) TenantContextKey() string {
	if v, ok := m.Metadata.Value(metadata.KeyTenantContextKey); ok && v != "" {
		return v
	}
	return usercontext.DefaultTenantKey
}

// UserAuditKey is the user-context key carrying the acting user's id.
func (m *Model) UserAuditKey() string {
	if v, ok := m.Metadata.Value(metadata.KeyUserAuditKey); ok && v != "" {
		return v
	}
	return usercontext.DefaultUserAuditKey
}

// HasUserAuditKey reports whether the model explicitly configures a
// user-audit-key. User audit columns are only populated when it does.
func (m *Model) HasUserAuditKey() bool {
	v, ok := m.Metadata.Value(metadata.KeyUserAuditKey)
	return ok && v != ""
}

// AutoFilterBypassRole is the role that skips auto-filtering, empty when
// unconfigured.
func (m *Model) AutoFilterBypassRole() string {
	v, _ := m.Metadata.Value(metadata.KeyAutoFilterBypassRole)
	return v
}

// DynamicJoins reports whether ad-hoc join fields are exposed. Defaults on.
func (m *Model) DynamicJoins() bool {
	return m.Metadata.Bool(metadata.KeyDynamicJoins, true)
}

// Table is one base table or view.
type Table struct {
	Catalog        string
	Schema         string
	DbName         string
	Type           string // TableTypeBase or TableTypeView
	GraphQLName    string // full field name, schema-prefixed outside the default schema
	TypeName       string // GraphQL object type name
	NormalizedName string // lower-cased singular form
	Columns        []*Column
	SingleLinks    map[string]*Link // this table holds the FK
	MultiLinks     map[string]*Link // this table is referenced
	Metadata       metadata.Map

	colByDbName  map[string]*Column // case-insensitive
	colByGraphQL map[string]*Column // case-sensitive
}

// SchemaQualifiedName renders "schema.table" for logs and errors.
func (t *Table) SchemaQualifiedName() string {
	if t.Schema == "" {
		return t.DbName
	}
	return t.Schema + "." + t.DbName
}

// IsView reports whether the table is a view. Views never receive mutation
// fields.
func (t *Table) IsView() bool {
	return t.Type == TableTypeView
}

// ColumnByDbName looks a column up by database name, case-insensitively.
func (t *Table) ColumnByDbName(name string) (*Column, bool) {
	c, ok := t.colByDbName[strings.ToLower(name)]
	return c, ok
}

// ColumnByGraphQLName looks a column up by GraphQL field name,
// case-sensitively.
func (t *Table) ColumnByGraphQLName(name string) (*Column, bool) {
	c, ok := t.colByGraphQL[name]
	return c, ok
}

// PrimaryKeyColumns returns the PK columns in ordinal order. Empty for
// tables without a primary key.
func (t *Table) PrimaryKeyColumns() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// IdentityColumn returns the auto-generated key column, if any.
func (t *Table) IdentityColumn() (*Column, bool) {
	for _, c := range t.Columns {
		if c.IsIdentity {
			return c, true
		}
	}
	return nil, false
}

// TenantFilterColumn returns the tenant column name when the table is
// tenant-scoped.
func (t *Table) TenantFilterColumn() (string, bool) {
	v, ok := t.Metadata.Value(metadata.KeyTenantFilter)
	return v, ok && v != ""
}

// SoftDeleteColumn returns the deleted-at column name and whether the
// soft-delete key is present at all. The key may be present with an empty
// value, which marks the table without emitting a filter.
func (t *Table) SoftDeleteColumn() (string, bool) {
	v, ok := t.Metadata.Value(metadata.KeySoftDelete)
	return v, ok
}

// SoftDeleteByColumn returns the deleted-by column name when configured.
func (t *Table) SoftDeleteByColumn() (string, bool) {
	v, ok := t.Metadata.Value(metadata.KeySoftDeleteBy)
	return v, ok && v != ""
}

// AutoFilterSpec returns the raw "column:claim, ..." mapping when present.
func (t *Table) AutoFilterSpec() (string, bool) {
	v, ok := t.Metadata.Value(metadata.KeyAutoFilter)
	return v, ok && strings.TrimSpace(v) != ""
}

// PopulateColumns returns the columns whose populate metadata equals kind
// (one of the metadata.Populate* values), in ordinal order.
func (t *Table) PopulateColumns(kind string) []*Column {
	var out []*Column
	for _, c := range t.Columns {
		if v, ok := c.Metadata.Value(metadata.KeyPopulate); ok && strings.TrimSpace(v) == kind {
			out = append(out, c)
		}
	}
	return out
}

// Column is one table column.
type Column struct {
	DbName       string
	GraphQLName  string
	Ordinal      int // 1-based position within the table
	DataType     string
	ScalarType   sqltype.GraphQLType
	IsNullable   bool
	IsPrimaryKey bool
	IsIdentity   bool
	Metadata     metadata.Map
}

// Link is a modeled foreign-key relation. Tables are referenced by name and
// resolved through the owning Model, never by pointer.
type Link struct {
	Name         string
	ChildSchema  string
	ChildTable   string
	ChildColumn  string
	ParentSchema string
	ParentTable  string
	ParentColumn string
}

// ChildTableIn resolves the FK-holding table.
func (l *Link) ChildTableIn(m *Model) (*Table, bool) {
	return m.TableByDbName(l.ChildSchema + "." + l.ChildTable)
}

// ParentTableIn resolves the referenced table.
func (l *Link) ParentTableIn(m *Model) (*Table, bool) {
	return m.TableByDbName(l.ParentSchema + "." + l.ParentTable)
}

// StoredProcedure is one discovered procedure (or set-returning function,
// for engines that model them that way).
type StoredProcedure struct {
	Catalog     string
	Schema      string
	DbName      string
	GraphQLName string // bare name in the default schema, "schema_name" otherwise
	Params      []*SPParam
	IsReadOnly  bool // query root when true, mutation root when false
}

// FullDbRef renders the dialect-escaped schema-qualified reference.
func (p *StoredProcedure) FullDbRef(d dialect.Dialect) string {
	return d.TableReference(p.Schema, p.DbName)
}

// SchemaQualifiedName renders "schema.name" for logs and errors.
func (p *StoredProcedure) SchemaQualifiedName() string {
	if p.Schema == "" {
		return p.DbName
	}
	return p.Schema + "." + p.DbName
}

// InputTypeName is the generated GraphQL input type name.
func (p *StoredProcedure) InputTypeName() string {
	return "sp_" + p.GraphQLName + "_Input"
}

// ResultTypeName is the generated GraphQL result type name.
func (p *StoredProcedure) ResultTypeName() string {
	return "sp_" + p.GraphQLName + "_Result"
}

// InputParams returns the parameters the caller supplies (Input and
// InputOutput directions) in ordinal order.
func (p *StoredProcedure) InputParams() []*SPParam {
	var out []*SPParam
	for _, param := range p.Params {
		if param.Direction != schemareader.DirectionOutput {
			out = append(out, param)
		}
	}
	return out
}

// OutputParams returns the parameters surfaced on the result type.
func (p *StoredProcedure) OutputParams() []*SPParam {
	var out []*SPParam
	for _, param := range p.Params {
		if param.Direction != schemareader.DirectionInput {
			out = append(out, param)
		}
	}
	return out
}

// SPParam is one procedure parameter.
type SPParam struct {
	DbName      string
	GraphQLName string
	DataType    string
	ScalarType  sqltype.GraphQLType
	Direction   schemareader.ParamDirection
	IsNullable  bool
	Ordinal     int
}
