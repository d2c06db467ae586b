// Package query defines the relational query IR: a tree of ObjectQuery
// nodes carrying column selections, filters, sorts, pagination and nested
// joins. The resolver layer builds the tree from a GraphQL selection set,
// transformers append filters, and the translator serializes it to SQL.
// IR nodes borrow model nodes and never outlive the model they point into.
package query

import (
	"fmt"
	"strings"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/model"
)

// Classification says how an ObjectQuery is executed and shaped.
type Classification int

const (
	// ClassStandard is a top-level list query.
	ClassStandard Classification = iota
	// ClassJoin is a bulk-loader child query attached to a parent.
	ClassJoin
	// ClassSingle is a single-row lookup, shaped as an object not a list.
	ClassSingle
	// ClassAggregate is a COUNT(*) query over the same filtered set.
	ClassAggregate
)

func (c Classification) String() string {
	switch c {
	case ClassStandard:
		return "standard"
	case ClassJoin:
		return "join"
	case ClassSingle:
		return "single"
	case ClassAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// ObjectQuery is one node of the IR tree.
type ObjectQuery struct {
	Table     *model.Table
	Schema    string
	TableName string
	// Path identifies the node in the emitted SQL map: the table's GraphQL
	// name at the root, "<parentPath>/<linkName>" below it.
	Path    string
	Columns []*model.Column
	Offset  int
	Limit   int // dialect.NoLimit disables the row cap
	Sort    []SortKey
	// Filter is the effective filter the translator serializes. Transformer
	// application rewrites it from the preserved user filter, so applying
	// the same transformers twice yields the same tree, not a nested one.
	Filter Filter
	Joins  []*Join
	Kind   Classification

	userFilter Filter
}

// SetUserFilter records the filter built from the request's arguments. It
// becomes the effective filter until transformers combine it with policy
// filters.
func (q *ObjectQuery) SetUserFilter(f Filter) {
	q.userFilter = f
	q.Filter = f
}

// UserFilter returns the request's own filter, untouched by transformers.
func (q *ObjectQuery) UserFilter() Filter {
	return q.userFilter
}

// Join attaches a child query through a link.
type Join struct {
	Link  *model.Link
	Query *ObjectQuery
}

// New creates an ObjectQuery for a table with the default pagination.
func New(t *model.Table, path string) *ObjectQuery {
	return &ObjectQuery{
		Table:     t,
		Schema:    t.Schema,
		TableName: t.DbName,
		Path:      path,
		Limit:     dialect.DefaultLimit,
		Kind:      ClassStandard,
	}
}

// SelectAll selects every column of the target table in ordinal order.
func (q *ObjectQuery) SelectAll() *ObjectQuery {
	q.Columns = append(q.Columns[:0], q.Table.Columns...)
	return q
}

// AddJoin attaches a child query for a link. The child's path is derived
// from this node's path so the SQL map keys stay unique.
func (q *ObjectQuery) AddJoin(link *model.Link, child *ObjectQuery) {
	child.Path = q.Path + "/" + link.Name
	child.Kind = ClassJoin
	q.Joins = append(q.Joins, &Join{Link: link, Query: child})
}

// AddSingleJoin attaches the referenced-parent side of a link as a child
// query shaped as a single row per parent.
func (q *ObjectQuery) AddSingleJoin(link *model.Link, child *ObjectQuery) {
	child.Path = q.Path + "/" + link.Name
	child.Kind = ClassSingle
	q.Joins = append(q.Joins, &Join{Link: link, Query: child})
}

// SortKey is one ORDER BY entry.
type SortKey struct {
	Column     string // database column name
	Descending bool
}

// ParseSortKey parses the "column_DIRECTION" form used by the GraphQL sort
// enums ("title_ASC", "created_at_DESC"). A value without a direction
// suffix sorts ascending.
func ParseSortKey(s string) SortKey {
	if idx := strings.LastIndex(s, "_"); idx > 0 {
		switch strings.ToUpper(s[idx+1:]) {
		case "ASC":
			return SortKey{Column: s[:idx]}
		case "DESC":
			return SortKey{Column: s[:idx], Descending: true}
		}
	}
	return SortKey{Column: s}
}

// Filter is one node of the filter tree: a Leaf comparison or an And/Or
// combination.
type Filter interface {
	isFilter()
}

// Leaf compares one column against a literal. A nil Value with the _eq
// operator compiles to IS NULL.
type Leaf struct {
	TableName  string
	ColumnName string
	Next       *Condition
}

// Condition carries the leaf's operator and literal value.
type Condition struct {
	Operator string // a dialect.Op* code
	Value    interface{}
}

// And combines children with logical AND, in order.
type And struct {
	Children []Filter
}

// Or combines children with logical OR, in order.
type Or struct {
	Children []Filter
}

func (*Leaf) isFilter() {}
func (*And) isFilter()  {}
func (*Or) isFilter()   {}

// NewLeaf builds a leaf comparison.
func NewLeaf(table, column, operator string, value interface{}) *Leaf {
	return &Leaf{
		TableName:  table,
		ColumnName: column,
		Next:       &Condition{Operator: operator, Value: value},
	}
}

// NewAnd combines filters under an AND node.
func NewAnd(children ...Filter) *And {
	return &And{Children: children}
}

// NewOr combines filters under an OR node.
func NewOr(children ...Filter) *Or {
	return &Or{Children: children}
}
