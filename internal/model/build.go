package model

import (
	"fmt"
	"log/slog"
	"strings"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/metadata"
	"bifrost-graphql/internal/naming"
	"bifrost-graphql/internal/schemafilter"
	"bifrost-graphql/internal/schemareader"
	"bifrost-graphql/internal/sqltype"
)

// GraphQL root type names. Table and procedure fields claim their names
// under these owners during the build so the generated schema never emits
// a duplicate field.
const (
	QueryRootName    = "database"
	MutationRootName = "databaseInput"
)

// Build assembles the canonical model from raw introspection output plus
// loaded metadata. The returned model is immutable.
func Build(data *schemareader.SchemaData, d dialect.Dialect, bundle *metadata.Bundle, namer *naming.Namer, logger *slog.Logger) (*Model, error) {
	if data == nil {
		return nil, fmt.Errorf("schema data is nil")
	}
	if bundle == nil {
		bundle = metadata.NewBundle()
	}
	if namer == nil {
		namer = naming.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	namer.Reset()

	m := &Model{
		Dialect:     d,
		Metadata:    bundle.Model().Clone(),
		byDbName:    make(map[string]*Table),
		byBare:      make(map[string][]*Table),
		byGraphQL:   make(map[string]*Table),
		procByName:  make(map[string]*StoredProcedure),
		procByGQL:   make(map[string]*StoredProcedure),
		procsByRoot: make(map[bool][]*StoredProcedure),
	}
	if m.Metadata == nil {
		m.Metadata = make(metadata.Map)
	}

	columnsByTable := groupColumns(data)
	for _, raw := range data.Tables {
		t := buildTable(raw, columnsByTable[tableKey(raw.Schema, raw.Name)], data, d, bundle, namer, logger)
		m.tables = append(m.tables, t)
		m.byDbName[tableKey(raw.Schema, raw.Name)] = t
		bare := strings.ToLower(raw.Name)
		m.byBare[bare] = append(m.byBare[bare], t)
		m.byGraphQL[t.GraphQLName] = t
		if m.DatabaseName == "" {
			m.DatabaseName = raw.Catalog
		}
	}

	buildLinks(m, data, namer, logger)

	if err := buildProcedures(m, data, d, namer, logger); err != nil {
		return nil, err
	}
	return m, nil
}

func tableKey(schema, table string) string {
	return strings.ToLower(schema) + "." + strings.ToLower(table)
}

func groupColumns(data *schemareader.SchemaData) map[string][]schemareader.RawColumn {
	grouped := make(map[string][]schemareader.RawColumn)
	for _, c := range data.Columns {
		k := tableKey(c.Schema, c.Table)
		grouped[k] = append(grouped[k], c)
	}
	return grouped
}

func buildTable(raw schemareader.RawTable, rawCols []schemareader.RawColumn, data *schemareader.SchemaData, d dialect.Dialect, bundle *metadata.Bundle, namer *naming.Namer, logger *slog.Logger) *Table {
	defaultSchema := d.IsDefaultSchema(raw.Schema)
	resolver := namer.Resolver()
	source := "table " + raw.Schema + "." + raw.Name

	t := &Table{
		Catalog:        raw.Catalog,
		Schema:         raw.Schema,
		DbName:         raw.Name,
		Type:           raw.Type,
		GraphQLName:    resolver.RegisterField(QueryRootName, namer.TableGraphQLName(raw.Schema, raw.Name, defaultSchema), source),
		TypeName:       resolver.RegisterType(namer.TableTypeName(raw.Schema, raw.Name, defaultSchema), source),
		NormalizedName: namer.NormalizedName(raw.Name),
		SingleLinks:    make(map[string]*Link),
		MultiLinks:     make(map[string]*Link),
		Metadata:       bundle.Table(raw.Schema, raw.Name),
		colByDbName:    make(map[string]*Column),
		colByGraphQL:   make(map[string]*Column),
	}

	identitySeen := false
	for _, rc := range rawCols {
		col := &Column{
			DbName:      rc.Name,
			GraphQLName: resolver.RegisterField(t.TypeName, namer.ToGraphQLName(rc.Name), source+" column "+rc.Name),
			Ordinal:     rc.Ordinal,
			DataType:    rc.DataType,
			ScalarType:  sqltype.Map(d, rc.DataType),
			IsNullable:  rc.IsNullable,
			IsIdentity:  rc.IsIdentity,
			Metadata:    bundle.Column(rc.Schema, rc.Table, rc.Name),
		}
		ref := schemareader.ColumnRef{Catalog: rc.Catalog, Schema: rc.Schema, Table: rc.Table, Column: rc.Name}
		for _, con := range data.Constraints[ref] {
			if con.Type == schemareader.ConstraintPrimaryKey {
				col.IsPrimaryKey = true
			}
		}
		if col.IsIdentity {
			if identitySeen {
				logger.Warn("table reports more than one identity column, keeping the first",
					slog.String("table", t.SchemaQualifiedName()),
					slog.String("column", col.DbName))
				col.IsIdentity = false
			} else {
				identitySeen = true
				col.IsPrimaryKey = true
			}
		}
		t.Columns = append(t.Columns, col)
		t.colByDbName[strings.ToLower(col.DbName)] = col
		t.colByGraphQL[col.GraphQLName] = col
	}
	return t
}

// buildLinks walks FK constraints in column order so link names resolve the
// same way on every build. Each FK column pair yields a SingleLink on the
// child named after the parent's GraphQL name and a MultiLink on the parent
// named after the child's.
func buildLinks(m *Model, data *schemareader.SchemaData, namer *naming.Namer, logger *slog.Logger) {
	resolver := namer.Resolver()
	for _, rc := range data.Columns {
		ref := schemareader.ColumnRef{Catalog: rc.Catalog, Schema: rc.Schema, Table: rc.Table, Column: rc.Name}
		for _, con := range data.Constraints[ref] {
			if con.Type != schemareader.ConstraintForeignKey || con.References == nil {
				continue
			}
			child, ok := m.byDbName[tableKey(rc.Schema, rc.Table)]
			if !ok {
				continue
			}
			parent, ok := m.byDbName[tableKey(con.References.Schema, con.References.Table)]
			if !ok {
				logger.Warn("foreign key references a table outside the model, skipping link",
					slog.String("constraint", con.Name),
					slog.String("referenced", con.References.Schema+"."+con.References.Table))
				continue
			}

			singleName := resolver.RegisterField(child.TypeName, parent.GraphQLName, "fk "+con.Name)
			child.SingleLinks[singleName] = &Link{
				Name:         singleName,
				ChildSchema:  child.Schema,
				ChildTable:   child.DbName,
				ChildColumn:  rc.Name,
				ParentSchema: parent.Schema,
				ParentTable:  parent.DbName,
				ParentColumn: con.References.Column,
			}

			multiName := resolver.RegisterField(parent.TypeName, child.GraphQLName, "fk "+con.Name)
			parent.MultiLinks[multiName] = &Link{
				Name:         multiName,
				ChildSchema:  child.Schema,
				ChildTable:   child.DbName,
				ChildColumn:  rc.Name,
				ParentSchema: parent.Schema,
				ParentTable:  parent.DbName,
				ParentColumn: con.References.Column,
			}
		}
	}
}

func buildProcedures(m *Model, data *schemareader.SchemaData, d dialect.Dialect, namer *naming.Namer, logger *slog.Logger) error {
	filter, err := schemafilter.NewProcedureFilter(m.Metadata)
	if err != nil {
		return err
	}
	resolver := namer.Resolver()

	for _, raw := range data.Procedures {
		if !filter.Include(raw.Schema, raw.Name) {
			logger.Debug("stored procedure filtered out",
				slog.String("procedure", raw.Schema+"."+raw.Name))
			continue
		}
		readonly := filter.ReadOnly(raw.Schema, raw.Name)
		root := MutationRootName
		if readonly {
			root = QueryRootName
		}
		source := "procedure " + raw.Schema + "." + raw.Name
		p := &StoredProcedure{
			Catalog:     raw.Catalog,
			Schema:      raw.Schema,
			DbName:      raw.Name,
			GraphQLName: resolver.RegisterField(root, namer.ProcedureGraphQLName(raw.Schema, raw.Name, d.IsDefaultSchema(raw.Schema)), source),
			IsReadOnly:  readonly,
		}
		for _, rp := range raw.Params {
			p.Params = append(p.Params, &SPParam{
				DbName:      rp.Name,
				GraphQLName: resolver.RegisterField(p.InputTypeName(), namer.ToGraphQLName(rp.Name), source+" param "+rp.Name),
				DataType:    rp.DataType,
				ScalarType:  sqltype.Map(d, rp.DataType),
				Direction:   rp.Direction,
				IsNullable:  rp.IsNullable,
				Ordinal:     rp.Ordinal,
			})
		}
		m.procedures = append(m.procedures, p)
		m.procByName[strings.ToLower(raw.Schema+"."+raw.Name)] = p
		m.procByGQL[p.GraphQLName] = p
		m.procsByRoot[readonly] = append(m.procsByRoot[readonly], p)
		if m.DatabaseName == "" {
			m.DatabaseName = raw.Catalog
		}
	}
	return nil
}
