// Package gqlschema generates the GraphQL type system from the model: one
// object type per table with link and dynamic-join fields, filter and sort
// inputs, tree-valued mutation inputs, and stored procedure call surfaces.
// Execution is delegated through the Binder so the type system stays free of
// database concerns.
package gqlschema

import (
	"sync"

	"github.com/graphql-go/graphql"

	"bifrost-graphql/internal/model"
)

// Schema surface names the resolver layer reads back from requests.
const (
	// IncludeDeletedArg opts a list or aggregate request into seeing
	// soft-deleted rows, subject to the transformer's own checks.
	IncludeDeletedArg = "_includeDeleted"
	// JoinFieldPrefix starts every dynamic join field; the joined table's
	// GraphQL name follows it.
	JoinFieldPrefix = "_join_"
	// JoinOnArg carries the dynamic join column pair.
	JoinOnArg = "on"
)

// Binder supplies the resolve functions behind generated root fields. Table
// type fields below the root have no resolvers; rows arrive as maps with
// nested link collections already stitched in, which the default resolver
// reads by field name.
type Binder interface {
	ResolveList(p graphql.ResolveParams, t *model.Table) (interface{}, error)
	ResolveAggregate(p graphql.ResolveParams, t *model.Table) (interface{}, error)
	ResolveInsert(p graphql.ResolveParams, t *model.Table) (interface{}, error)
	ResolveUpdate(p graphql.ResolveParams, t *model.Table) (interface{}, error)
	ResolveDelete(p graphql.ResolveParams, t *model.Table) (interface{}, error)
	ResolveProcedure(p graphql.ResolveParams, sp *model.StoredProcedure) (interface{}, error)
}

// Builder holds per-schema type caches. A builder produces one schema; a
// refresh builds a fresh builder over the new model.
type Builder struct {
	model  *model.Model
	binder Binder

	mu              sync.RWMutex
	typeCache       map[string]*graphql.Object
	inputCache      map[string]*graphql.InputObject
	filterCache     map[string]*graphql.InputObject
	comparisonCache map[string]*graphql.InputObject
	sortCache       map[string]*graphql.Enum
	aggregateCache  map[string]*graphql.Object
	spInputCache    map[string]*graphql.InputObject
	spResultCache   map[string]*graphql.Object
	jsonScalar      *graphql.Scalar
	limitScalar     *graphql.Scalar
	nonNegativeInt  *graphql.Scalar
}

// NewBuilder creates a schema builder over an immutable model.
func NewBuilder(m *model.Model, binder Binder) *Builder {
	return &Builder{
		model:           m,
		binder:          binder,
		typeCache:       make(map[string]*graphql.Object),
		inputCache:      make(map[string]*graphql.InputObject),
		filterCache:     make(map[string]*graphql.InputObject),
		comparisonCache: make(map[string]*graphql.InputObject),
		sortCache:       make(map[string]*graphql.Enum),
		aggregateCache:  make(map[string]*graphql.Object),
		spInputCache:    make(map[string]*graphql.InputObject),
		spResultCache:   make(map[string]*graphql.Object),
	}
}

// Build constructs the executable schema: a "database" query root with list,
// aggregate and read-only procedure fields, and a "databaseInput" mutation
// root with insert/update/delete fields per base table plus mutating
// procedures.
func (b *Builder) Build() (graphql.Schema, error) {
	queryFields := graphql.Fields{}
	for _, t := range b.model.Tables() {
		b.addTableQueries(queryFields, t)
	}
	for _, sp := range b.model.ProceduresForRoot(true) {
		b.addProcedureField(queryFields, sp)
	}
	if len(queryFields) == 0 {
		queryFields["_schema"] = &graphql.Field{
			Type:        graphql.String,
			Description: "Placeholder field when the database has no tables.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "no tables found in database", nil
			},
		}
	}

	mutationFields := graphql.Fields{}
	for _, t := range b.model.Tables() {
		// Views stay read-only; the model does not mark them writable.
		if t.IsView() {
			continue
		}
		b.addTableMutations(mutationFields, t)
	}
	for _, sp := range b.model.ProceduresForRoot(false) {
		b.addProcedureField(mutationFields, sp)
	}

	config := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   model.QueryRootName,
			Fields: queryFields,
		}),
	}
	if len(mutationFields) > 0 {
		config.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   model.MutationRootName,
			Fields: mutationFields,
		})
	}
	return graphql.NewSchema(config)
}

// addTableQueries adds the list field and its _agg companion.
func (b *Builder) addTableQueries(fields graphql.Fields, t *model.Table) {
	fields[t.GraphQLName] = &graphql.Field{
		Type:    graphql.NewList(graphql.NewNonNull(b.tableType(t))),
		Args:    b.listArgs(t),
		Resolve: b.listResolver(t),
	}
	fields[t.GraphQLName+"_agg"] = &graphql.Field{
		Type:    graphql.NewNonNull(b.aggregateType(t)),
		Args:    b.aggregateArgs(t),
		Resolve: b.aggregateResolver(t),
	}
}

// addTableMutations adds insert/update/delete fields. Insert and update take
// the table's tree input and return the mutated row; delete returns the
// affected row count.
func (b *Builder) addTableMutations(fields graphql.Fields, t *model.Table) {
	input := b.tableInput(t)
	fields["insert_"+t.GraphQLName] = &graphql.Field{
		Type: b.tableType(t),
		Args: graphql.FieldConfigArgument{
			"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
		},
		Resolve: b.insertResolver(t),
	}
	fields["update_"+t.GraphQLName] = &graphql.Field{
		Type: b.tableType(t),
		Args: graphql.FieldConfigArgument{
			"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
		},
		Resolve: b.updateResolver(t),
	}
	fields["delete_"+t.GraphQLName] = &graphql.Field{
		Type: graphql.Int,
		Args: graphql.FieldConfigArgument{
			"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
		},
		Resolve: b.deleteResolver(t),
	}
}

func (b *Builder) addProcedureField(fields graphql.Fields, sp *model.StoredProcedure) {
	field := &graphql.Field{
		Type:    graphql.NewNonNull(b.procedureResultType(sp)),
		Resolve: b.procedureResolver(sp),
	}
	if input := b.procedureInputType(sp); input != nil {
		field.Args = graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
		}
	}
	fields[sp.GraphQLName] = field
}

// listArgs are the arguments every list-valued field carries: filter, sort,
// limit (-1 lifts the cap), offset, and the soft-delete bypass when the
// table supports it.
func (b *Builder) listArgs(t *model.Table) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"filter": &graphql.ArgumentConfig{Type: b.filterInput(t)},
		"sort":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(b.sortEnum(t)))},
		"limit":  &graphql.ArgumentConfig{Type: b.limit()},
		"offset": &graphql.ArgumentConfig{Type: b.nonNegative()},
	}
	if _, ok := t.SoftDeleteColumn(); ok {
		args[IncludeDeletedArg] = &graphql.ArgumentConfig{Type: graphql.Boolean}
	}
	return args
}

func (b *Builder) aggregateArgs(t *model.Table) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"filter": &graphql.ArgumentConfig{Type: b.filterInput(t)},
	}
	if _, ok := t.SoftDeleteColumn(); ok {
		args[IncludeDeletedArg] = &graphql.ArgumentConfig{Type: graphql.Boolean}
	}
	return args
}

func (b *Builder) listResolver(t *model.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return b.binder.ResolveList(p, t)
	}
}

func (b *Builder) aggregateResolver(t *model.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return b.binder.ResolveAggregate(p, t)
	}
}

func (b *Builder) insertResolver(t *model.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return b.binder.ResolveInsert(p, t)
	}
}

func (b *Builder) updateResolver(t *model.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return b.binder.ResolveUpdate(p, t)
	}
}

func (b *Builder) deleteResolver(t *model.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return b.binder.ResolveDelete(p, t)
	}
}

func (b *Builder) procedureResolver(sp *model.StoredProcedure) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return b.binder.ResolveProcedure(p, sp)
	}
}
