package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/metadata"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/schemareader"
	"bifrost-graphql/internal/usercontext"
)

// shopModel builds Orders and Users tables with enough columns for every
// policy test; the bundle decides which policies are active.
func shopModel(t *testing.T, bundle *metadata.Bundle) *model.Model {
	t.Helper()
	data := schemareader.NewSchemaData()
	data.Tables = []schemareader.RawTable{
		{Catalog: "shop", Schema: "dbo", Name: "Orders", Type: schemareader.TableTypeBase},
		{Catalog: "shop", Schema: "dbo", Name: "Users", Type: schemareader.TableTypeBase},
	}
	orderCols := []string{"Id", "tenant_id", "org_id", "Total", "Name", "deleted_at", "deleted_by",
		"created_at", "updated_at", "created_by_user_id", "updated_by_user_id"}
	for i, name := range orderCols {
		data.Columns = append(data.Columns, schemareader.RawColumn{
			Catalog: "shop", Schema: "dbo", Table: "Orders", Name: name,
			Ordinal: i + 1, DataType: "varchar(100)", IsNullable: i > 0,
			IsIdentity: i == 0,
		})
	}
	for i, name := range []string{"Id", "Name", "deleted_at"} {
		data.Columns = append(data.Columns, schemareader.RawColumn{
			Catalog: "shop", Schema: "dbo", Table: "Users", Name: name,
			Ordinal: i + 1, DataType: "varchar(100)", IsNullable: i > 0,
			IsIdentity: i == 0,
		})
	}
	m, err := model.Build(data, dialect.SQLServer, bundle, nil, nil)
	require.NoError(t, err)
	return m
}

func ordersQuery(t *testing.T, m *model.Model) *query.ObjectQuery {
	t.Helper()
	orders, ok := m.TableByDbName("Orders")
	require.True(t, ok)
	return query.New(orders, orders.GraphQLName).SelectAll()
}

func TestTenantFilterProducesEqualityLeaf(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	m := shopModel(t, bundle)

	q := ordersQuery(t, m)
	err := DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 42})
	require.NoError(t, err)

	leaf, ok := q.Filter.(*query.Leaf)
	require.True(t, ok, "expected a single leaf, got %#v", q.Filter)
	assert.Equal(t, "Orders", leaf.TableName)
	assert.Equal(t, "tenant_id", leaf.ColumnName)
	assert.Equal(t, dialect.OpEq, leaf.Next.Operator)
	assert.Equal(t, 42, leaf.Next.Value)
}

func TestTenantFilterErrors(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	m := shopModel(t, bundle)

	tests := []struct {
		name     string
		ctx      usercontext.Map
		wantCode string
	}{
		{"key absent", usercontext.Map{}, execerr.CodeTenantMissing},
		{"value null", usercontext.Map{"tenant_id": nil}, execerr.CodeTenantNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultQueryTransformers().ApplyTransformers(ordersQuery(t, m), m, tt.ctx)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, execerr.CodeOf(err))
		})
	}
}

func TestTenantFilterColumnNotFound(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "no_such_column")
	m := shopModel(t, bundle)

	err := DefaultQueryTransformers().ApplyTransformers(ordersQuery(t, m), m, usercontext.Map{"tenant_id": 42})
	require.Error(t, err)
	assert.Equal(t, execerr.CodeColumnNotFound, execerr.CodeOf(err))
	assert.Contains(t, err.Error(), "no_such_column")
}

func TestTenantFilterCustomContextKey(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetModel(metadata.KeyTenantContextKey, "org")
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	m := shopModel(t, bundle)

	q := ordersQuery(t, m)
	err := DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"org": "acme"})
	require.NoError(t, err)

	leaf := q.Filter.(*query.Leaf)
	assert.Equal(t, "acme", leaf.Next.Value)
}

func TestSoftDeleteFilterHidesDeletedRows(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Users", metadata.KeySoftDelete, "deleted_at")
	m := shopModel(t, bundle)

	users, _ := m.TableByDbName("Users")
	q := query.New(users, users.GraphQLName).SelectAll()
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{}))

	leaf, ok := q.Filter.(*query.Leaf)
	require.True(t, ok)
	assert.Equal(t, "deleted_at", leaf.ColumnName)
	assert.Equal(t, dialect.OpEq, leaf.Next.Operator)
	assert.Nil(t, leaf.Next.Value)
}

func TestSoftDeleteIncludeDeletedBypass(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Users", metadata.KeySoftDelete, "deleted_at")
	m := shopModel(t, bundle)

	users, _ := m.TableByDbName("Users")
	q := query.New(users, users.GraphQLName).SelectAll()
	err := DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{usercontext.IncludeDeletedKey: true})
	require.NoError(t, err)
	assert.Nil(t, q.Filter, "include_deleted should suppress the soft-delete filter")
}

func TestSoftDeleteScopedIncludeDeleted(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Users", metadata.KeySoftDelete, "deleted_at")
	m := shopModel(t, bundle)
	users, _ := m.TableByDbName("Users")

	q := query.New(users, users.GraphQLName).SelectAll()
	ctx := usercontext.Map{"include_deleted:dbo.Users": true}
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, ctx))
	assert.Nil(t, q.Filter)

	// The scoped key only bypasses its own table.
	q2 := query.New(users, users.GraphQLName).SelectAll()
	ctx2 := usercontext.Map{"include_deleted:dbo.Orders": true}
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q2, m, ctx2))
	assert.NotNil(t, q2.Filter)
}

func TestSoftDeleteEmptyValueEmitsNoFilter(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Users", metadata.KeySoftDelete, "")
	m := shopModel(t, bundle)
	users, _ := m.TableByDbName("Users")

	tr := SoftDeleteFilter{}
	assert.True(t, tr.AppliesTo(users, m, usercontext.Map{}))
	f, err := tr.AdditionalFilter(users, m, usercontext.Map{})
	require.NoError(t, err)
	assert.Nil(t, f)

	q := query.New(users, users.GraphQLName).SelectAll()
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{}))
	assert.Nil(t, q.Filter)
}

func TestAutoFilterArrayClaim(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyAutoFilter, "org_id:organization_ids")
	m := shopModel(t, bundle)

	q := ordersQuery(t, m)
	ctx := usercontext.Map{"organization_ids": []interface{}{1, 2, 3}}
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, ctx))

	leaf, ok := q.Filter.(*query.Leaf)
	require.True(t, ok)
	assert.Equal(t, "org_id", leaf.ColumnName)
	assert.Equal(t, dialect.OpIn, leaf.Next.Operator)
	assert.Equal(t, []interface{}{1, 2, 3}, leaf.Next.Value)
}

func TestAutoFilterScalarClaim(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyAutoFilter, "org_id:organization_id")
	m := shopModel(t, bundle)

	q := ordersQuery(t, m)
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"organization_id": 7}))

	leaf := q.Filter.(*query.Leaf)
	assert.Equal(t, dialect.OpEq, leaf.Next.Operator)
	assert.Equal(t, 7, leaf.Next.Value)
}

func TestAutoFilterMultiplePairs(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyAutoFilter, "org_id:orgs , tenant_id:tid")
	m := shopModel(t, bundle)

	q := ordersQuery(t, m)
	ctx := usercontext.Map{"orgs": []interface{}{1}, "tid": 9}
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, ctx))

	and, ok := q.Filter.(*query.And)
	require.True(t, ok, "expected AND of pair filters, got %#v", q.Filter)
	require.Len(t, and.Children, 2)
	assert.Equal(t, "org_id", and.Children[0].(*query.Leaf).ColumnName)
	assert.Equal(t, "tenant_id", and.Children[1].(*query.Leaf).ColumnName)
}

func TestAutoFilterErrors(t *testing.T) {
	tests := []struct {
		name     string
		mapping  string
		ctx      usercontext.Map
		wantCode string
	}{
		{"claim missing", "org_id:orgs", usercontext.Map{}, execerr.CodeClaimMissing},
		{"claim null", "org_id:orgs", usercontext.Map{"orgs": nil}, execerr.CodeClaimNull},
		{"claim empty list", "org_id:orgs", usercontext.Map{"orgs": []interface{}{}}, execerr.CodeClaimEmpty},
		{"missing colon", "org_id", usercontext.Map{}, execerr.CodeInvalidFormat},
		{"empty column", ":orgs", usercontext.Map{}, execerr.CodeInvalidFormat},
		{"empty claim", "org_id:", usercontext.Map{}, execerr.CodeInvalidFormat},
		{"trailing comma", "org_id:orgs,", usercontext.Map{"orgs": 1}, execerr.CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := metadata.NewBundle()
			bundle.SetTable("dbo", "Orders", metadata.KeyAutoFilter, tt.mapping)
			m := shopModel(t, bundle)

			err := DefaultQueryTransformers().ApplyTransformers(ordersQuery(t, m), m, tt.ctx)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, execerr.CodeOf(err))
		})
	}
}

func TestAutoFilterBypassRole(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetModel(metadata.KeyAutoFilterBypassRole, "Admin")
	bundle.SetTable("dbo", "Orders", metadata.KeyAutoFilter, "org_id:orgs")
	m := shopModel(t, bundle)

	tests := []struct {
		name  string
		roles interface{}
	}{
		{"single string", "admin"},
		{"string list", []string{"viewer", "ADMIN"}},
		{"interface list", []interface{}{"viewer", "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ordersQuery(t, m)
			ctx := usercontext.Map{usercontext.RolesKey: tt.roles}
			require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, ctx))
			assert.Nil(t, q.Filter, "bypass role should skip auto filtering")
		})
	}
}

func TestCombinationRuleOrdersFiltersByPriority(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	bundle.SetTable("dbo", "Orders", metadata.KeyAutoFilter, "org_id:orgs")
	bundle.SetTable("dbo", "Orders", metadata.KeySoftDelete, "deleted_at")
	m := shopModel(t, bundle)

	q := ordersQuery(t, m)
	existing := query.NewLeaf("Orders", "Total", dialect.OpGt, 100)
	q.SetUserFilter(existing)

	ctx := usercontext.Map{"tenant_id": 42, "orgs": 7}
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, ctx))

	and, ok := q.Filter.(*query.And)
	require.True(t, ok)
	require.Len(t, and.Children, 4)
	assert.Same(t, existing, and.Children[0].(*query.Leaf), "existing filter must come first")
	assert.Equal(t, "tenant_id", and.Children[1].(*query.Leaf).ColumnName)
	assert.Equal(t, "org_id", and.Children[2].(*query.Leaf).ColumnName)
	assert.Equal(t, "deleted_at", and.Children[3].(*query.Leaf).ColumnName)
}

func TestApplyTransformersIsIdempotent(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Orders", metadata.KeyTenantFilter, "tenant_id")
	bundle.SetTable("dbo", "Orders", metadata.KeySoftDelete, "deleted_at")
	m := shopModel(t, bundle)

	q := ordersQuery(t, m)
	q.SetUserFilter(query.NewLeaf("Orders", "Total", dialect.OpGt, 100))
	svc := DefaultQueryTransformers()
	ctx := usercontext.Map{"tenant_id": 42}

	require.NoError(t, svc.ApplyTransformers(q, m, ctx))
	first := q.Filter
	require.NoError(t, svc.ApplyTransformers(q, m, ctx))

	assert.Equal(t, first, q.Filter, "second application must not nest the filter deeper")
	and := q.Filter.(*query.And)
	assert.Len(t, and.Children, 3)
}

func TestNoMetadataMeansNoInjectedFilter(t *testing.T) {
	m := shopModel(t, nil)
	q := ordersQuery(t, m)
	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(q, m, usercontext.Map{"tenant_id": 42}))
	assert.Nil(t, q.Filter)
}

func TestApplyTransformersRecursesIntoJoins(t *testing.T) {
	bundle := metadata.NewBundle()
	bundle.SetTable("dbo", "Users", metadata.KeySoftDelete, "deleted_at")
	m := shopModel(t, bundle)

	orders, _ := m.TableByDbName("Orders")
	users, _ := m.TableByDbName("Users")
	link := &model.Link{
		Name:        "users",
		ChildSchema: "dbo", ChildTable: "Orders", ChildColumn: "org_id",
		ParentSchema: "dbo", ParentTable: "Users", ParentColumn: "Id",
	}

	parent := query.New(orders, orders.GraphQLName).SelectAll()
	child := query.New(users, "").SelectAll()
	parent.AddJoin(link, child)

	require.NoError(t, DefaultQueryTransformers().ApplyTransformers(parent, m, usercontext.Map{}))
	assert.Nil(t, parent.Filter)
	require.NotNil(t, child.Filter, "policy must reach joined tables")
	assert.Equal(t, "deleted_at", child.Filter.(*query.Leaf).ColumnName)
}

// auditedOrdersModel marks the Orders audit columns with populate metadata;
// withUserKey additionally configures the user-audit-key so the *_by columns
// are stamped from the "user_id" claim.
func auditedOrdersModel(t *testing.T, withUserKey bool) *model.Model {
	t.Helper()
	bundle := metadata.NewBundle()
	bundle.SetColumn("dbo", "Orders", "created_at", metadata.KeyPopulate, metadata.PopulateCreatedOn)
	bundle.SetColumn("dbo", "Orders", "updated_at", metadata.KeyPopulate, metadata.PopulateUpdatedOn)
	bundle.SetColumn("dbo", "Orders", "created_by_user_id", metadata.KeyPopulate, metadata.PopulateCreatedBy)
	bundle.SetColumn("dbo", "Orders", "updated_by_user_id", metadata.KeyPopulate, metadata.PopulateUpdatedBy)
	bundle.SetColumn("dbo", "Orders", "deleted_at", metadata.KeyPopulate, metadata.PopulateDeletedOn)
	bundle.SetColumn("dbo", "Orders", "deleted_by", metadata.KeyPopulate, metadata.PopulateDeletedBy)
	if withUserKey {
		bundle.SetModel(metadata.KeyUserAuditKey, "user_id")
	}
	return shopModel(t, bundle)
}

func auditTimestamp(t *testing.T, data map[string]interface{}, column string) time.Time {
	t.Helper()
	ts, ok := data[column].(time.Time)
	require.True(t, ok, "%s should be stamped with a time.Time, got %#v", column, data[column])
	return ts
}

func TestAuditInsertStampsCreateAndUpdateColumns(t *testing.T) {
	m := auditedOrdersModel(t, true)
	orders, _ := m.TableByDbName("Orders")
	ctx := usercontext.Map{"user_id": "user-42"}

	// A client-supplied created_at must be overwritten, not trusted.
	input := map[string]interface{}{"Name": "widget", "created_at": "1999-01-01T00:00:00Z"}
	res := DefaultMutationTransformers().Transform(orders, m, MutationInsert, input, ctx)
	require.Empty(t, res.Errors)
	assert.Equal(t, MutationInsert, res.MutationType)

	created := auditTimestamp(t, res.Data, "created_at")
	updated := auditTimestamp(t, res.Data, "updated_at")
	assert.True(t, created.Equal(updated), "created_at and updated_at must carry the same instant")
	assert.Equal(t, time.UTC, created.Location())
	assert.Equal(t, time.UTC, updated.Location())
	assert.Equal(t, "user-42", res.Data["created_by_user_id"])
	assert.Equal(t, "user-42", res.Data["updated_by_user_id"])
	assert.Equal(t, "widget", res.Data["Name"])

	// Inserts never touch the delete columns.
	assert.NotContains(t, res.Data, "deleted_at")
	assert.NotContains(t, res.Data, "deleted_by")

	// The caller's map stays as supplied.
	assert.Equal(t, "1999-01-01T00:00:00Z", input["created_at"])
}

func TestAuditUpdateStampsOnlyUpdateColumns(t *testing.T) {
	m := auditedOrdersModel(t, true)
	orders, _ := m.TableByDbName("Orders")

	res := BasicAuditModule{}.Transform(orders, m, MutationUpdate,
		map[string]interface{}{"Total": "99"}, usercontext.Map{"user_id": "user-42"})
	require.Empty(t, res.Errors)

	updated := auditTimestamp(t, res.Data, "updated_at")
	assert.Equal(t, time.UTC, updated.Location())
	assert.Equal(t, "user-42", res.Data["updated_by_user_id"])
	assert.NotContains(t, res.Data, "created_at")
	assert.NotContains(t, res.Data, "created_by_user_id")
	assert.NotContains(t, res.Data, "deleted_at")
	assert.NotContains(t, res.Data, "deleted_by")
}

func TestAuditDeleteStampsUpdateAndDeleteColumns(t *testing.T) {
	m := auditedOrdersModel(t, true)
	orders, _ := m.TableByDbName("Orders")

	res := BasicAuditModule{}.Transform(orders, m, MutationDelete,
		map[string]interface{}{}, usercontext.Map{"user_id": "user-42"})
	require.Empty(t, res.Errors)

	updated := auditTimestamp(t, res.Data, "updated_at")
	deleted := auditTimestamp(t, res.Data, "deleted_at")
	assert.True(t, updated.Equal(deleted), "delete must stamp one instant into every time column")
	assert.Equal(t, "user-42", res.Data["updated_by_user_id"])
	assert.Equal(t, "user-42", res.Data["deleted_by"])
	assert.NotContains(t, res.Data, "created_at")
	assert.NotContains(t, res.Data, "created_by_user_id")
}

func TestAuditUserColumnsRequireUserAuditKey(t *testing.T) {
	m := auditedOrdersModel(t, false)
	orders, _ := m.TableByDbName("Orders")

	// Populate metadata alone still activates the module for timestamps.
	require.True(t, BasicAuditModule{}.AppliesTo(orders, MutationInsert, usercontext.Map{}))

	res := BasicAuditModule{}.Transform(orders, m, MutationInsert,
		map[string]interface{}{}, usercontext.Map{"user_id": "user-42"})
	require.Empty(t, res.Errors)

	auditTimestamp(t, res.Data, "created_at")
	auditTimestamp(t, res.Data, "updated_at")
	assert.NotContains(t, res.Data, "created_by_user_id")
	assert.NotContains(t, res.Data, "updated_by_user_id")
}

func TestAuditMissingClaimStampsNullUser(t *testing.T) {
	m := auditedOrdersModel(t, true)
	orders, _ := m.TableByDbName("Orders")

	res := BasicAuditModule{}.Transform(orders, m, MutationInsert,
		map[string]interface{}{}, usercontext.Map{})
	require.Empty(t, res.Errors)

	assert.Contains(t, res.Data, "created_by_user_id")
	assert.Nil(t, res.Data["created_by_user_id"])
	assert.Contains(t, res.Data, "updated_by_user_id")
	assert.Nil(t, res.Data["updated_by_user_id"])
}

func TestAuditSkipsTablesWithoutPopulateMetadata(t *testing.T) {
	m := shopModel(t, metadata.NewBundle())
	orders, _ := m.TableByDbName("Orders")
	assert.False(t, BasicAuditModule{}.AppliesTo(orders, MutationInsert, usercontext.Map{}))

	res := DefaultMutationTransformers().Transform(orders, m, MutationInsert,
		map[string]interface{}{"Name": "widget"}, usercontext.Map{"user_id": "user-42"})
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]interface{}{"Name": "widget"}, res.Data)
}
