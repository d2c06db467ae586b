// Package treesync diffs a submitted mutation tree against the existing rows
// and produces an ordered operation list: inserts by ascending depth, then
// updates, then deletes by descending depth. Executing the list in order
// keeps foreign keys valid at every step.
package treesync

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bifrost-graphql/internal/model"
)

// OperationType classifies one tree-sync operation.
type OperationType int

const (
	OpInsert OperationType = iota
	OpUpdate
	OpDelete
)

func (t OperationType) String() string {
	switch t {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", int(t))
	}
}

// Operation is one step of a computed sync.
type Operation struct {
	Type  OperationType
	Table *model.Table
	// Data holds column values keyed by database column name: the full row
	// for inserts, the changed columns for updates.
	Data map[string]interface{}
	// Keys holds the primary key values addressing the row for updates and
	// deletes.
	Keys map[string]interface{}
	// ForeignKeyAssignments names, per foreign-key column, the parent table
	// whose newly generated key the executor must fill in before this
	// insert runs. Values already known at compute time are set in Data
	// instead.
	ForeignKeyAssignments map[string]string
	Depth                 int

	// parent is the insert producing this row's parent when the parent is
	// itself new; the executor binds the generated key through it.
	parent *Operation
}

// DefaultMaxDepth bounds tree descent when configuration does not.
const DefaultMaxDepth = 3

// Engine computes sync operations under a fixed depth and orphan policy.
type Engine struct {
	maxDepth      int
	deleteOrphans bool
}

// NewEngine builds an engine. maxDepth must be at least 1; a zero depth
// would make every mutation a no-op, so it is rejected outright.
func NewEngine(maxDepth int, deleteOrphans bool) (*Engine, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("tree sync max depth must be at least 1, got %d", maxDepth)
	}
	return &Engine{maxDepth: maxDepth, deleteOrphans: deleteOrphans}, nil
}

// MaxDepth reports the engine's descent bound. Callers reading the stored
// tree before a sync fetch to the same depth.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// ComputeOperations diffs submitted against existing on the given table and
// returns the globally ordered operation list. existing is nil when the
// submitted root does not match a stored row.
func (e *Engine) ComputeOperations(m *model.Model, t *model.Table, submitted, existing map[string]interface{}) ([]*Operation, error) {
	c := &collector{}
	if err := e.syncNode(c, m, t, submitted, existing, 0, nil, nil); err != nil {
		return nil, err
	}
	return c.ordered(), nil
}

// DeleteOperations returns the ordered deletes that remove an existing row
// together with every child row under it, innermost rows first.
func (e *Engine) DeleteOperations(m *model.Model, t *model.Table, existing map[string]interface{}) ([]*Operation, error) {
	c := &collector{}
	if err := e.deleteSubtree(c, m, t, existing, 0); err != nil {
		return nil, err
	}
	return c.ordered(), nil
}

type collector struct {
	inserts []*Operation
	updates []*Operation
	deletes []*Operation
}

// ordered applies the global ordering: inserts ascending by depth so parents
// precede children, updates in discovery order, deletes descending by depth
// so children go before the rows they reference.
func (c *collector) ordered() []*Operation {
	sort.SliceStable(c.inserts, func(i, j int) bool {
		return c.inserts[i].Depth < c.inserts[j].Depth
	})
	sort.SliceStable(c.deletes, func(i, j int) bool {
		return c.deletes[i].Depth > c.deletes[j].Depth
	})
	out := make([]*Operation, 0, len(c.inserts)+len(c.updates)+len(c.deletes))
	out = append(out, c.inserts...)
	out = append(out, c.updates...)
	out = append(out, c.deletes...)
	return out
}

// syncNode processes one submitted node. parentLink is nil at the root;
// parentOp is the pending insert of the parent row when the parent is new.
func (e *Engine) syncNode(c *collector, m *model.Model, t *model.Table, submitted, existing map[string]interface{}, depth int, parentOp *Operation, parentLink *model.Link) error {
	if depth >= e.maxDepth {
		return nil
	}

	if existing == nil {
		return e.insertSubtree(c, m, t, submitted, depth, parentOp, parentLink, nil)
	}

	if changed := changedColumns(t, submitted, existing); len(changed) > 0 {
		keys, ok := primaryKeyValues(t, existing)
		if !ok {
			return fmt.Errorf("existing %s row is missing primary key values", t.SchemaQualifiedName())
		}
		c.updates = append(c.updates, &Operation{
			Type:  OpUpdate,
			Table: t,
			Data:  changed,
			Keys:  keys,
			Depth: depth,
		})
	}

	return e.syncCollections(c, m, t, submitted, existing, depth)
}

// insertSubtree emits an insert for the node and descends into its submitted
// collections, which are all inserts too. parentKey carries the parent's
// already-known key value for the foreign-key column, when there is one.
func (e *Engine) insertSubtree(c *collector, m *model.Model, t *model.Table, submitted map[string]interface{}, depth int, parentOp *Operation, parentLink *model.Link, parentKey interface{}) error {
	op := &Operation{
		Type:   OpInsert,
		Table:  t,
		Data:   columnData(t, submitted),
		Depth:  depth,
		parent: parentOp,
	}
	if parentLink != nil {
		op.ForeignKeyAssignments = map[string]string{parentLink.ChildColumn: parentLink.ParentTable}
		if parentKey != nil {
			op.Data[parentLink.ChildColumn] = parentKey
		}
	}
	c.inserts = append(c.inserts, op)

	for _, link := range sortedMultiLinks(t) {
		children, ok := collection(submitted, link.Name)
		if !ok {
			continue
		}
		child, ok := link.ChildTableIn(m)
		if !ok {
			return fmt.Errorf("link %q references unknown table %s.%s", link.Name, link.ChildSchema, link.ChildTable)
		}
		if depth+1 >= e.maxDepth {
			continue
		}
		key := keyForLink(t, link, submitted, nil)
		for _, row := range children {
			if err := e.insertSubtree(c, m, child, row, depth+1, op, link, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// syncCollections matches each submitted child collection against the
// existing one by primary key, producing inserts for unmatched submitted
// rows, recursive syncs for matches, and orphan deletes for existing rows
// no submitted sibling claims.
func (e *Engine) syncCollections(c *collector, m *model.Model, t *model.Table, submitted, existing map[string]interface{}, depth int) error {
	for _, link := range sortedMultiLinks(t) {
		submittedRows, ok := collection(submitted, link.Name)
		if !ok {
			continue
		}
		child, ok := link.ChildTableIn(m)
		if !ok {
			return fmt.Errorf("link %q references unknown table %s.%s", link.Name, link.ChildSchema, link.ChildTable)
		}

		existingRows, _ := collection(existing, link.Name)
		byKey := make(map[string]map[string]interface{}, len(existingRows))
		for _, row := range existingRows {
			if key, ok := rowKey(child, row); ok {
				byKey[key] = row
			}
		}

		matched := make(map[string]bool, len(submittedRows))
		for _, row := range submittedRows {
			key, hasKey := rowKey(child, row)
			if hasKey {
				if existingRow, found := byKey[key]; found {
					matched[key] = true
					if err := e.syncNode(c, m, child, row, existingRow, depth+1, nil, link); err != nil {
						return err
					}
					continue
				}
			}
			if depth+1 >= e.maxDepth {
				continue
			}
			parentKey := keyForLink(t, link, existing, submitted)
			if err := e.insertSubtree(c, m, child, row, depth+1, nil, link, parentKey); err != nil {
				return err
			}
		}

		if !e.deleteOrphans {
			continue
		}
		for _, row := range existingRows {
			key, ok := rowKey(child, row)
			if !ok || matched[key] {
				continue
			}
			if err := e.deleteSubtree(c, m, child, row, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteSubtree emits deletes for an orphaned existing row and everything
// under it. Depth ordering puts the innermost deletes first in the final
// list.
func (e *Engine) deleteSubtree(c *collector, m *model.Model, t *model.Table, existing map[string]interface{}, depth int) error {
	if depth >= e.maxDepth {
		return nil
	}
	keys, ok := primaryKeyValues(t, existing)
	if !ok {
		return fmt.Errorf("existing %s row is missing primary key values", t.SchemaQualifiedName())
	}
	c.deletes = append(c.deletes, &Operation{
		Type:  OpDelete,
		Table: t,
		Keys:  keys,
		Depth: depth,
	})

	for _, link := range sortedMultiLinks(t) {
		rows, ok := collection(existing, link.Name)
		if !ok {
			continue
		}
		child, ok := link.ChildTableIn(m)
		if !ok {
			return fmt.Errorf("link %q references unknown table %s.%s", link.Name, link.ChildSchema, link.ChildTable)
		}
		for _, row := range rows {
			if err := e.deleteSubtree(c, m, child, row, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// sortedMultiLinks returns the table's multi-links in name order so sibling
// collections sync in a stable order.
func sortedMultiLinks(t *model.Table) []*model.Link {
	names := make([]string, 0, len(t.MultiLinks))
	for name := range t.MultiLinks {
		names = append(names, name)
	}
	sort.Strings(names)
	links := make([]*model.Link, len(names))
	for i, name := range names {
		links[i] = t.MultiLinks[name]
	}
	return links
}

// columnData keeps the submitted values that name real columns, keyed by
// database column name. Everything else, collections included, is dropped;
// unknown keys are ignored by design of the sync contract.
func columnData(t *model.Table, data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		if col, ok := lookupColumn(t, key); ok {
			if _, isCollection := value.([]interface{}); isCollection {
				continue
			}
			if _, isCollection := value.([]map[string]interface{}); isCollection {
				continue
			}
			out[col.DbName] = value
		}
	}
	return out
}

// changedColumns diffs the submitted scalar values against the existing row
// and returns only the columns whose values differ.
func changedColumns(t *model.Table, submitted, existing map[string]interface{}) map[string]interface{} {
	changed := make(map[string]interface{})
	for key, value := range submitted {
		col, ok := lookupColumn(t, key)
		if !ok {
			continue
		}
		current, present := valueForColumn(existing, col)
		if !present || !valuesEqual(value, current) {
			changed[col.DbName] = value
		}
	}
	return changed
}

func lookupColumn(t *model.Table, key string) (*model.Column, bool) {
	if col, ok := t.ColumnByDbName(key); ok {
		return col, true
	}
	if col, ok := t.ColumnByGraphQLName(key); ok {
		return col, true
	}
	return nil, false
}

func valueForColumn(data map[string]interface{}, col *model.Column) (interface{}, bool) {
	if v, ok := data[col.DbName]; ok {
		return v, true
	}
	if v, ok := data[col.GraphQLName]; ok {
		return v, true
	}
	for key, v := range data {
		if strings.EqualFold(key, col.DbName) {
			return v, true
		}
	}
	return nil, false
}

// collection extracts a child collection from a data map. GraphQL hands
// lists over as []interface{} of maps; internally loaded rows may already be
// []map[string]interface{}.
func collection(data map[string]interface{}, name string) ([]map[string]interface{}, bool) {
	raw, ok := data[name]
	if !ok || raw == nil {
		return nil, false
	}
	switch rows := raw.(type) {
	case []map[string]interface{}:
		return rows, true
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(rows))
		for _, item := range rows {
			if row, ok := item.(map[string]interface{}); ok {
				out = append(out, row)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// primaryKeyValues extracts the complete primary key from a row.
func primaryKeyValues(t *model.Table, data map[string]interface{}) (map[string]interface{}, bool) {
	pkCols := t.PrimaryKeyColumns()
	if len(pkCols) == 0 {
		return nil, false
	}
	keys := make(map[string]interface{}, len(pkCols))
	for _, col := range pkCols {
		value, ok := valueForColumn(data, col)
		if !ok || value == nil {
			return nil, false
		}
		keys[col.DbName] = value
	}
	return keys, true
}

// rowKey renders the primary key as a comparable string so int64 values
// from the database match the plain ints a request submits.
func rowKey(t *model.Table, data map[string]interface{}) (string, bool) {
	keys, ok := primaryKeyValues(t, data)
	if !ok {
		return "", false
	}
	parts := make([]string, 0, len(keys))
	for _, col := range t.PrimaryKeyColumns() {
		parts = append(parts, valueKey(keys[col.DbName]))
	}
	return strings.Join(parts, "\x1f"), true
}

// keyForLink finds the parent-side link column value when it is already
// known, so child inserts under an existing or fully keyed parent need no
// executor backfill.
func keyForLink(t *model.Table, link *model.Link, data map[string]interface{}, fallback map[string]interface{}) interface{} {
	for _, source := range []map[string]interface{}{data, fallback} {
		if source == nil {
			continue
		}
		if col, ok := t.ColumnByDbName(link.ParentColumn); ok {
			if v, present := valueForColumn(source, col); present && v != nil {
				return v
			}
		}
	}
	return nil
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func valueKey(v interface{}) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
