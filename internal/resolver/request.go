package resolver

import (
	"sort"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/gqlschema"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/usercontext"
)

// requestBuilder turns one GraphQL request into a query IR tree. It carries
// the request's variables and fragment definitions because graphql-go only
// coerces arguments for fields it calls a resolver on; nested link fields
// resolve through the default map lookup, so their arguments are read
// straight from the AST.
type requestBuilder struct {
	r      *Resolver
	fields []*ast.Field
	frags  map[string]ast.Definition
	vars   map[string]interface{}
	// uctx widens as _includeDeleted opt-ins are found while walking.
	uctx usercontext.Map
}

func newRequestBuilder(r *Resolver, p graphql.ResolveParams) *requestBuilder {
	return &requestBuilder{
		r:      r,
		fields: p.Info.FieldASTs,
		frags:  p.Info.Fragments,
		vars:   p.Info.VariableValues,
		uctx:   usercontext.FromContext(p.Context),
	}
}

// listQuery builds the root list query from the field's coerced arguments
// and its selection set.
func (b *requestBuilder) listQuery(t *model.Table, args map[string]interface{}) (*query.ObjectQuery, error) {
	q := query.New(t, t.GraphQLName)
	if err := b.applyArgs(q, t, args); err != nil {
		return nil, err
	}
	for _, field := range b.fields {
		if field == nil || field.SelectionSet == nil {
			continue
		}
		if err := b.populate(q, t, field.SelectionSet); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// aggregateQuery builds a count query over the same filtered set.
func (b *requestBuilder) aggregateQuery(t *model.Table, args map[string]interface{}) (*query.ObjectQuery, error) {
	q := query.New(t, t.GraphQLName+"_agg")
	q.Kind = query.ClassAggregate
	if err := b.applyArgs(q, t, args); err != nil {
		return nil, err
	}
	return q, nil
}

// applyArgs maps list arguments onto a query node. The soft-delete opt-in
// does not shape SQL directly; it widens the user context the transformer
// chain consults for this node's table.
func (b *requestBuilder) applyArgs(q *query.ObjectQuery, t *model.Table, args map[string]interface{}) error {
	if raw, ok := args["filter"]; ok && raw != nil {
		fm, ok := raw.(map[string]interface{})
		if !ok {
			return execerr.New(execerr.CodeInvalidFormat, "filter on %s must be an object", t.GraphQLName)
		}
		f, err := buildFilter(t, fm)
		if err != nil {
			return err
		}
		q.SetUserFilter(f)
	}
	if raw, ok := args["sort"]; ok && raw != nil {
		keys, err := sortKeys(t, raw)
		if err != nil {
			return err
		}
		q.Sort = keys
	}
	if v, ok := intArg(args, "limit"); ok {
		if v < 0 {
			q.Limit = dialect.NoLimit
		} else {
			q.Limit = v
		}
	}
	if v, ok := intArg(args, "offset"); ok && v > 0 {
		q.Offset = v
	}
	if v, ok := args[gqlschema.IncludeDeletedArg]; ok {
		if on, isBool := v.(bool); isBool && on {
			b.uctx = b.uctx.WithIncludeDeleted(t.Schema, t.DbName)
		}
	}
	return nil
}

// populate walks a selection set, adding scalar columns and child queries
// for link and dynamic join selections. Fragment spreads and inline
// fragments flatten into the same node; a table type has exactly one
// possible type condition.
func (b *requestBuilder) populate(q *query.ObjectQuery, t *model.Table, set *ast.SelectionSet) error {
	for _, sel := range set.Selections {
		switch node := sel.(type) {
		case *ast.Field:
			if err := b.populateField(q, t, node); err != nil {
				return err
			}
		case *ast.InlineFragment:
			if node.SelectionSet == nil {
				continue
			}
			if err := b.populate(q, t, node.SelectionSet); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			if node.Name == nil {
				continue
			}
			def, ok := b.frags[node.Name.Value].(*ast.FragmentDefinition)
			if !ok || def.SelectionSet == nil {
				continue
			}
			if err := b.populate(q, t, def.SelectionSet); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *requestBuilder) populateField(q *query.ObjectQuery, t *model.Table, node *ast.Field) error {
	if node.Name == nil {
		return nil
	}
	name := node.Name.Value
	if strings.HasPrefix(name, "__") {
		return nil
	}
	if col, ok := t.ColumnByGraphQLName(name); ok {
		addColumn(q, col)
		return nil
	}
	if link, ok := t.SingleLinks[name]; ok {
		return b.addSingleLink(q, t, link, node)
	}
	if link, ok := t.MultiLinks[name]; ok {
		return b.addMultiLink(q, t, link, node)
	}
	if strings.HasPrefix(name, gqlschema.JoinFieldPrefix) {
		return b.addDynamicJoin(q, t, node)
	}
	return nil
}

// addSingleLink attaches the referenced-parent lookup for a FK field. The
// field carries no arguments; single links only narrow through the policy
// chain.
func (b *requestBuilder) addSingleLink(q *query.ObjectQuery, t *model.Table, link *model.Link, node *ast.Field) error {
	target, ok := link.ParentTableIn(b.r.model)
	if !ok {
		return execerr.TableNotFound(link.ParentSchema + "." + link.ParentTable)
	}
	if existing := findJoin(q, link.Name); existing != nil {
		return b.populateChild(existing.Query, target, node)
	}

	child := query.New(target, "")
	child.Limit = dialect.NoLimit
	if err := b.populateChild(child, target, node); err != nil {
		return err
	}
	ensureColumn(q, t, link.ChildColumn)
	ensureColumn(child, target, link.ParentColumn)
	q.AddSingleJoin(link, child)
	return nil
}

func (b *requestBuilder) addMultiLink(q *query.ObjectQuery, t *model.Table, link *model.Link, node *ast.Field) error {
	target, ok := link.ChildTableIn(b.r.model)
	if !ok {
		return execerr.TableNotFound(link.ChildSchema + "." + link.ChildTable)
	}
	if existing := findJoin(q, link.Name); existing != nil {
		return b.populateChild(existing.Query, target, node)
	}

	child, err := b.childQuery(target, node)
	if err != nil {
		return err
	}
	ensureColumn(q, t, link.ParentColumn)
	ensureColumn(child, target, link.ChildColumn)
	q.AddJoin(link, child)
	return nil
}

// addDynamicJoin builds the ad-hoc link behind a _join_ field. The on
// argument names the pair: first the column on the joined table, then the
// column on this table's rows.
func (b *requestBuilder) addDynamicJoin(q *query.ObjectQuery, t *model.Table, node *ast.Field) error {
	if !b.r.model.DynamicJoins() {
		return nil
	}
	name := node.Name.Value
	target, ok := b.r.model.TableByGraphQLName(strings.TrimPrefix(name, gqlschema.JoinFieldPrefix))
	if !ok {
		return execerr.TableNotFound(strings.TrimPrefix(name, gqlschema.JoinFieldPrefix))
	}

	args, err := b.fieldArgs(node)
	if err != nil {
		return err
	}
	pair, ok := joinPair(args[gqlschema.JoinOnArg])
	if !ok {
		return execerr.New(execerr.CodeInvalidFormat,
			"%s needs on: [joined table column, local column]", name)
	}
	childCol, ok := resolveColumn(target, pair[0])
	if !ok {
		return execerr.ColumnNotFound(pair[0], target.SchemaQualifiedName())
	}
	parentCol, ok := resolveColumn(t, pair[1])
	if !ok {
		return execerr.ColumnNotFound(pair[1], t.SchemaQualifiedName())
	}

	link := &model.Link{
		Name:         name,
		ChildSchema:  target.Schema,
		ChildTable:   target.DbName,
		ChildColumn:  childCol.DbName,
		ParentSchema: t.Schema,
		ParentTable:  t.DbName,
		ParentColumn: parentCol.DbName,
	}
	if existing := findJoin(q, link.Name); existing != nil {
		return b.populateChild(existing.Query, target, node)
	}

	child, err := b.childQuery(target, node)
	if err != nil {
		return err
	}
	ensureColumn(q, t, link.ParentColumn)
	ensureColumn(child, target, link.ChildColumn)
	q.AddJoin(link, child)
	return nil
}

// childQuery builds a list-shaped child node from a nested field: its own
// filter, sort and paging arguments plus its selection set. Children default
// to no row cap; a statement-level cap would truncate rows across parents,
// not per parent.
func (b *requestBuilder) childQuery(target *model.Table, node *ast.Field) (*query.ObjectQuery, error) {
	child := query.New(target, "")
	child.Limit = dialect.NoLimit
	args, err := b.fieldArgs(node)
	if err != nil {
		return nil, err
	}
	if err := b.applyArgs(child, target, args); err != nil {
		return nil, err
	}
	if err := b.populateChild(child, target, node); err != nil {
		return nil, err
	}
	return child, nil
}

func (b *requestBuilder) populateChild(child *query.ObjectQuery, target *model.Table, node *ast.Field) error {
	if node.SelectionSet == nil {
		return nil
	}
	return b.populate(child, target, node.SelectionSet)
}

// fieldArgs evaluates a nested field's AST arguments with request variables
// substituted.
func (b *requestBuilder) fieldArgs(node *ast.Field) (map[string]interface{}, error) {
	if len(node.Arguments) == 0 {
		return nil, nil
	}
	args := make(map[string]interface{}, len(node.Arguments))
	for _, arg := range node.Arguments {
		if arg == nil || arg.Name == nil || arg.Value == nil {
			continue
		}
		args[arg.Name.Value] = b.astValue(arg.Value)
	}
	return args, nil
}

// astValue resolves one AST value node to a plain Go value. Enum literals
// keep their names; sortKeys accepts both spellings.
func (b *requestBuilder) astValue(v ast.Value) interface{} {
	switch tv := v.(type) {
	case *ast.Variable:
		if tv.Name == nil {
			return nil
		}
		return b.vars[tv.Name.Value]
	case *ast.IntValue:
		if n, err := strconv.Atoi(tv.Value); err == nil {
			return n
		}
		return nil
	case *ast.FloatValue:
		if f, err := strconv.ParseFloat(tv.Value, 64); err == nil {
			return f
		}
		return nil
	case *ast.StringValue:
		return tv.Value
	case *ast.BooleanValue:
		return tv.Value
	case *ast.EnumValue:
		return tv.Value
	case *ast.ListValue:
		out := make([]interface{}, 0, len(tv.Values))
		for _, item := range tv.Values {
			out = append(out, b.astValue(item))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(tv.Fields))
		for _, f := range tv.Fields {
			if f == nil || f.Name == nil {
				continue
			}
			out[f.Name.Value] = b.astValue(f.Value)
		}
		return out
	default:
		return nil
	}
}

// buildFilter converts a filter argument map into the IR filter tree.
// Sibling entries combine with AND. Map iteration order is randomized, so
// keys are walked sorted to keep statement argument order stable.
func buildFilter(t *model.Table, arg map[string]interface{}) (query.Filter, error) {
	parts := make([]query.Filter, 0, len(arg))
	for _, key := range sortedKeys(arg) {
		raw := arg[key]
		switch key {
		case "_and", "_or":
			list, ok := raw.([]interface{})
			if !ok {
				return nil, execerr.New(execerr.CodeInvalidFormat, "%s on %s must be a list", key, t.GraphQLName)
			}
			children := make([]query.Filter, 0, len(list))
			for _, item := range list {
				m, ok := item.(map[string]interface{})
				if !ok {
					return nil, execerr.New(execerr.CodeInvalidFormat, "%s on %s must contain objects", key, t.GraphQLName)
				}
				child, err := buildFilter(t, m)
				if err != nil {
					return nil, err
				}
				if child != nil {
					children = append(children, child)
				}
			}
			if len(children) == 0 {
				continue
			}
			if key == "_and" {
				parts = append(parts, query.NewAnd(children...))
			} else {
				parts = append(parts, query.NewOr(children...))
			}
		default:
			col, ok := t.ColumnByGraphQLName(key)
			if !ok {
				return nil, execerr.ColumnNotFound(key, t.SchemaQualifiedName())
			}
			cmp, ok := raw.(map[string]interface{})
			if !ok {
				return nil, execerr.New(execerr.CodeInvalidFormat, "comparison on %s.%s must be an object", t.GraphQLName, key)
			}
			for _, op := range sortedKeys(cmp) {
				parts = append(parts, query.NewLeaf(t.DbName, col.DbName, op, cmp[op]))
			}
		}
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return query.NewAnd(parts...), nil
	}
}

// sortKeys parses sort values. Root arguments arrive as the enum's internal
// value carrying the database column name; nested literals arrive as the
// enum name carrying the GraphQL column name. Both spellings resolve here.
func sortKeys(t *model.Table, raw interface{}) ([]query.SortKey, error) {
	list, ok := raw.([]interface{})
	if !ok {
		s, isString := raw.(string)
		if !isString {
			return nil, execerr.New(execerr.CodeInvalidFormat, "sort on %s must be a list", t.GraphQLName)
		}
		list = []interface{}{s}
	}
	keys := make([]query.SortKey, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, execerr.New(execerr.CodeInvalidFormat, "sort on %s must contain enum values", t.GraphQLName)
		}
		key := query.ParseSortKey(s)
		col, ok := resolveColumn(t, key.Column)
		if !ok {
			return nil, execerr.ColumnNotFound(key.Column, t.SchemaQualifiedName())
		}
		keys = append(keys, query.SortKey{Column: col.DbName, Descending: key.Descending})
	}
	return keys, nil
}

// resolveColumn accepts either the database or the GraphQL spelling of a
// column name.
func resolveColumn(t *model.Table, name string) (*model.Column, bool) {
	if c, ok := t.ColumnByDbName(name); ok {
		return c, true
	}
	return t.ColumnByGraphQLName(name)
}

func joinPair(raw interface{}) ([2]string, bool) {
	list, ok := raw.([]interface{})
	if !ok || len(list) != 2 {
		return [2]string{}, false
	}
	first, okFirst := list[0].(string)
	second, okSecond := list[1].(string)
	if !okFirst || !okSecond || first == "" || second == "" {
		return [2]string{}, false
	}
	return [2]string{first, second}, true
}

func findJoin(q *query.ObjectQuery, name string) *query.Join {
	for _, j := range q.Joins {
		if j.Link.Name == name {
			return j
		}
	}
	return nil
}

// addColumn selects a column once; repeated selections of the same field
// merge.
func addColumn(q *query.ObjectQuery, col *model.Column) {
	for _, c := range q.Columns {
		if c == col {
			return
		}
	}
	q.Columns = append(q.Columns, col)
}

// ensureColumn keeps a link column in the selection so the stitch key is
// present in scanned rows even when the request never asked for it.
func ensureColumn(q *query.ObjectQuery, t *model.Table, dbName string) {
	if col, ok := t.ColumnByDbName(dbName); ok {
		addColumn(q, col)
	}
}

func intArg(args map[string]interface{}, key string) (int, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false
	}
	switch tv := v.(type) {
	case int:
		return tv, true
	case int64:
		return int(tv), true
	case float64:
		return int(tv), true
	}
	return 0, false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
