package transform

import (
	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/usercontext"
)

// TenantFilter scopes every query on a tenant-filter table to the tenant id
// found in the user context.
type TenantFilter struct{}

func (TenantFilter) Priority() int {
	return PriorityTenant
}

func (TenantFilter) AppliesTo(t *model.Table, _ *model.Model, _ usercontext.Map) bool {
	_, ok := t.TenantFilterColumn()
	return ok
}

func (TenantFilter) AdditionalFilter(t *model.Table, m *model.Model, ctx usercontext.Map) (query.Filter, error) {
	column, _ := t.TenantFilterColumn()
	key := m.TenantContextKey()

	value, ok := ctx.Value(key)
	if !ok {
		return nil, execerr.TenantMissing(key)
	}
	if value == nil {
		return nil, execerr.TenantNull(key)
	}
	if _, ok := t.ColumnByDbName(column); !ok {
		return nil, execerr.ColumnNotFound(column, t.DbName)
	}
	return query.NewLeaf(t.DbName, column, dialect.OpEq, value), nil
}
