package gqlschema

import (
	"github.com/graphql-go/graphql"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/scalars"
	"bifrost-graphql/internal/schemareader"
	"bifrost-graphql/internal/sqltype"
)

func (b *Builder) tableType(t *model.Table) *graphql.Object {
	b.mu.RLock()
	cached, ok := b.typeCache[t.TypeName]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	// FieldsThunk defers field construction so tables that link to each
	// other resolve through the cache instead of recursing forever.
	objType := graphql.NewObject(graphql.ObjectConfig{
		Name: t.TypeName,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.tableFields(t)
		}),
	})

	// Cache before the thunk can run.
	b.mu.Lock()
	if cached, ok := b.typeCache[t.TypeName]; ok {
		b.mu.Unlock()
		return cached
	}
	b.typeCache[t.TypeName] = objType
	b.mu.Unlock()

	return objType
}

// tableFields builds the fields for a table type: one scalar field per
// column, one field per link, and the ad-hoc join fields when enabled.
func (b *Builder) tableFields(t *model.Table) graphql.Fields {
	fields := graphql.Fields{}

	for _, c := range t.Columns {
		var fieldType graphql.Output = b.scalarFor(c.ScalarType)
		if !c.IsNullable {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[c.GraphQLName] = &graphql.Field{Type: fieldType}
	}

	// Single links stay nullable even over a NOT NULL foreign key; policy
	// filters on the parent table can hide the referenced row.
	for name, link := range t.SingleLinks {
		parent, ok := link.ParentTableIn(b.model)
		if !ok {
			continue
		}
		fields[name] = &graphql.Field{Type: b.tableType(parent)}
	}

	for name, link := range t.MultiLinks {
		child, ok := link.ChildTableIn(b.model)
		if !ok {
			continue
		}
		fields[name] = &graphql.Field{
			Type: graphql.NewList(graphql.NewNonNull(b.tableType(child))),
			Args: b.listArgs(child),
		}
	}

	if b.model.DynamicJoins() {
		for _, other := range b.model.Tables() {
			if other == t {
				continue
			}
			args := b.listArgs(other)
			args[JoinOnArg] = &graphql.ArgumentConfig{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
				Description: "Join column pair: [column on the joined table, column on this table's rows].",
			}
			fields[JoinFieldPrefix+other.GraphQLName] = &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(b.tableType(other))),
				Args: args,
			}
		}
	}

	return fields
}

func (b *Builder) aggregateType(t *model.Table) *graphql.Object {
	name := t.TypeName + "Aggregate"

	b.mu.RLock()
	cached, ok := b.aggregateCache[name]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	objType := graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			"count": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	b.mu.Lock()
	if cached, ok := b.aggregateCache[name]; ok {
		b.mu.Unlock()
		return cached
	}
	b.aggregateCache[name] = objType
	b.mu.Unlock()

	return objType
}

// filterInput builds the boolean filter input for a table: one comparison
// field per column plus _and/_or lists of the same input type.
func (b *Builder) filterInput(t *model.Table) *graphql.InputObject {
	name := t.TypeName + "FilterInput"

	b.mu.RLock()
	cached, ok := b.filterCache[name]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	var input *graphql.InputObject
	input = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{
				"_and": &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(input))},
				"_or":  &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(input))},
			}
			for _, c := range t.Columns {
				fields[c.GraphQLName] = &graphql.InputObjectFieldConfig{Type: b.comparisonInput(c.ScalarType)}
			}
			return fields
		}),
	})

	b.mu.Lock()
	if cached, ok := b.filterCache[name]; ok {
		b.mu.Unlock()
		return cached
	}
	b.filterCache[name] = input
	b.mu.Unlock()

	return input
}

// comparisonInput returns the shared per-scalar comparison input. Field names
// are the filter operator codes, so resolver-side translation is a direct
// key-to-operator mapping.
func (b *Builder) comparisonInput(st sqltype.GraphQLType) *graphql.InputObject {
	name := st.FilterTypeName()

	b.mu.RLock()
	cached, ok := b.comparisonCache[name]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	var base *graphql.Scalar
	switch name {
	case "IntFilter":
		base = graphql.Int
	case "FloatFilter":
		base = graphql.Float
	case "BooleanFilter":
		base = graphql.Boolean
	default:
		base = graphql.String
	}

	fields := graphql.InputObjectConfigFieldMap{
		dialect.OpEq:  &graphql.InputObjectFieldConfig{Type: base},
		dialect.OpNeq: &graphql.InputObjectFieldConfig{Type: base},
	}
	if name != "BooleanFilter" {
		fields[dialect.OpGt] = &graphql.InputObjectFieldConfig{Type: base}
		fields[dialect.OpGte] = &graphql.InputObjectFieldConfig{Type: base}
		fields[dialect.OpLt] = &graphql.InputObjectFieldConfig{Type: base}
		fields[dialect.OpLte] = &graphql.InputObjectFieldConfig{Type: base}
		fields[dialect.OpIn] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(base)}
		fields[dialect.OpBetween] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(base))}
	}
	if name == "StringFilter" {
		fields[dialect.OpContains] = &graphql.InputObjectFieldConfig{Type: graphql.String}
		fields[dialect.OpStartsWith] = &graphql.InputObjectFieldConfig{Type: graphql.String}
		fields[dialect.OpEndsWith] = &graphql.InputObjectFieldConfig{Type: graphql.String}
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: fields,
	})

	b.mu.Lock()
	if cached, ok := b.comparisonCache[name]; ok {
		b.mu.Unlock()
		return cached
	}
	b.comparisonCache[name] = input
	b.mu.Unlock()

	return input
}

// sortEnum builds the per-table sort enum. Value names use GraphQL column
// names; internal values carry the database column name so downstream sort
// parsing needs no further lookup.
func (b *Builder) sortEnum(t *model.Table) *graphql.Enum {
	name := t.TypeName + "Sort"

	b.mu.RLock()
	cached, ok := b.sortCache[name]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	values := graphql.EnumValueConfigMap{}
	for _, c := range t.Columns {
		values[c.GraphQLName+"_ASC"] = &graphql.EnumValueConfig{Value: c.DbName + "_ASC"}
		values[c.GraphQLName+"_DESC"] = &graphql.EnumValueConfig{Value: c.DbName + "_DESC"}
	}
	enum := graphql.NewEnum(graphql.EnumConfig{
		Name:   name,
		Values: values,
	})

	b.mu.Lock()
	if cached, ok := b.sortCache[name]; ok {
		b.mu.Unlock()
		return cached
	}
	b.sortCache[name] = enum
	b.mu.Unlock()

	return enum
}

// tableInput builds the tree-valued mutation input: every column as a
// nullable scalar plus one child list per multi link. All fields are optional
// so the same input serves insert, update and delete payloads.
func (b *Builder) tableInput(t *model.Table) *graphql.InputObject {
	name := t.TypeName + "Input"

	b.mu.RLock()
	cached, ok := b.inputCache[name]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, c := range t.Columns {
				fields[c.GraphQLName] = &graphql.InputObjectFieldConfig{Type: b.scalarFor(c.ScalarType)}
			}
			for linkName, link := range t.MultiLinks {
				child, ok := link.ChildTableIn(b.model)
				if !ok {
					continue
				}
				fields[linkName] = &graphql.InputObjectFieldConfig{
					Type: graphql.NewList(graphql.NewNonNull(b.tableInput(child))),
				}
			}
			return fields
		}),
	})

	b.mu.Lock()
	if cached, ok := b.inputCache[name]; ok {
		b.mu.Unlock()
		return cached
	}
	b.inputCache[name] = input
	b.mu.Unlock()

	return input
}

// procedureInputType returns nil for procedures without input parameters;
// such fields take no arguments.
func (b *Builder) procedureInputType(sp *model.StoredProcedure) *graphql.InputObject {
	params := sp.InputParams()
	if len(params) == 0 {
		return nil
	}
	name := sp.InputTypeName()

	b.mu.RLock()
	cached, ok := b.spInputCache[name]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for _, p := range params {
		var fieldType graphql.Input = b.scalarFor(p.ScalarType)
		// InputOutput parameters may be omitted; the driver seeds them.
		if !p.IsNullable && p.Direction == schemareader.DirectionInput {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[p.GraphQLName] = &graphql.InputObjectFieldConfig{Type: fieldType}
	}
	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: fields,
	})

	b.mu.Lock()
	if cached, ok := b.spInputCache[name]; ok {
		b.mu.Unlock()
		return cached
	}
	b.spInputCache[name] = input
	b.mu.Unlock()

	return input
}

func (b *Builder) procedureResultType(sp *model.StoredProcedure) *graphql.Object {
	name := sp.ResultTypeName()

	b.mu.RLock()
	cached, ok := b.spResultCache[name]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	fields := graphql.Fields{
		"resultSets":   &graphql.Field{Type: graphql.NewList(graphql.NewList(b.json()))},
		"affectedRows": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	}
	for _, p := range sp.OutputParams() {
		fields[p.GraphQLName] = &graphql.Field{Type: b.scalarFor(p.ScalarType)}
	}
	objType := graphql.NewObject(graphql.ObjectConfig{
		Name:   name,
		Fields: fields,
	})

	b.mu.Lock()
	if cached, ok := b.spResultCache[name]; ok {
		b.mu.Unlock()
		return cached
	}
	b.spResultCache[name] = objType
	b.mu.Unlock()

	return objType
}

func (b *Builder) scalarFor(st sqltype.GraphQLType) *graphql.Scalar {
	switch st {
	case sqltype.TypeInt:
		return graphql.Int
	case sqltype.TypeFloat:
		return graphql.Float
	case sqltype.TypeBoolean:
		return graphql.Boolean
	case sqltype.TypeJSON:
		return b.json()
	default:
		return graphql.String
	}
}

// One scalar instance per schema. graphql-go rejects two type instances with
// the same name in one schema.
func (b *Builder) json() *graphql.Scalar {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jsonScalar == nil {
		b.jsonScalar = scalars.JSON()
	}
	return b.jsonScalar
}

func (b *Builder) limit() *graphql.Scalar {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limitScalar == nil {
		b.limitScalar = scalars.Limit()
	}
	return b.limitScalar
}

func (b *Builder) nonNegative() *graphql.Scalar {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nonNegativeInt == nil {
		b.nonNegativeInt = scalars.NonNegativeInt()
	}
	return b.nonNegativeInt
}
