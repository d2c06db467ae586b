package transform

import (
	"time"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/usercontext"
)

// SoftDeleteFilter hides logically deleted rows: tables carrying soft-delete
// metadata get an IS NULL filter on the deleted-at column unless the user
// context opts into seeing deleted rows, globally or per table.
type SoftDeleteFilter struct{}

func (SoftDeleteFilter) Priority() int {
	return PrioritySoftDelete
}

func (SoftDeleteFilter) AppliesTo(t *model.Table, _ *model.Model, ctx usercontext.Map) bool {
	if _, present := t.SoftDeleteColumn(); !present {
		return false
	}
	return !ctx.IncludeDeleted(t.Schema, t.DbName)
}

func (SoftDeleteFilter) AdditionalFilter(t *model.Table, _ *model.Model, _ usercontext.Map) (query.Filter, error) {
	column, _ := t.SoftDeleteColumn()
	// The key may mark the table without naming a column; then there is
	// nothing to filter on.
	if column == "" {
		return nil, nil
	}
	return query.NewLeaf(t.DbName, column, dialect.OpEq, nil), nil
}

// SoftDeleteMutation rewrites deletes on soft-delete tables into updates
// that stamp the deleted-at column, and pins updates to rows that are not
// already deleted.
type SoftDeleteMutation struct{}

func (SoftDeleteMutation) AppliesTo(t *model.Table, mt MutationType, _ usercontext.Map) bool {
	column, present := t.SoftDeleteColumn()
	if !present || column == "" {
		return false
	}
	return mt == MutationUpdate || mt == MutationDelete
}

func (SoftDeleteMutation) Transform(t *model.Table, m *model.Model, mt MutationType, data map[string]interface{}, ctx usercontext.Map) MutationTransformResult {
	column, _ := t.SoftDeleteColumn()
	result := MutationTransformResult{
		MutationType: mt,
		Data:         cloneData(data),
	}
	if _, ok := t.ColumnByDbName(column); !ok {
		result.Errors = append(result.Errors, execerr.ColumnNotFound(column, t.DbName))
		return result
	}

	switch mt {
	case MutationDelete:
		result.MutationType = MutationUpdate
		result.Data[column] = time.Now().UTC()
		if byColumn, ok := t.SoftDeleteByColumn(); ok {
			if _, ok := t.ColumnByDbName(byColumn); !ok {
				result.Errors = append(result.Errors, execerr.ColumnNotFound(byColumn, t.DbName))
				result.MutationType = mt
				result.Data = cloneData(data)
				return result
			}
			if user, ok := ctx.Value(m.UserAuditKey()); ok && user != nil {
				result.Data[byColumn] = user
			}
		}
	case MutationUpdate:
		result.AdditionalFilter = query.NewLeaf(t.DbName, column, dialect.OpEq, nil)
	}
	return result
}
