package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToGraphQLName(t *testing.T) {
	n := Default()

	tests := []struct {
		in   string
		want string
	}{
		{"tenant_id", "tenantId"},
		{"Total", "total"},
		{"created_at", "createdAt"},
		{"OrderItems", "orderItems"},
		{"order_line_items", "orderLineItems"},
		{"id", "id"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.ToGraphQLName(tt.in), tt.in)
	}
}

func TestToTypeName(t *testing.T) {
	n := Default()

	assert.Equal(t, "UserProfiles", n.ToTypeName("user_profiles"))
	assert.Equal(t, "Orders", n.ToTypeName("Orders"))
	// Reserved words get a trailing underscore.
	assert.Equal(t, "Query_", n.ToTypeName("query"))
	assert.Equal(t, "Int_", n.ToTypeName("int"))
}

func TestTableGraphQLNameSchemaPrefix(t *testing.T) {
	n := Default()

	assert.Equal(t, "orders", n.TableGraphQLName("dbo", "Orders", true))
	assert.Equal(t, "sales_orders", n.TableGraphQLName("Sales", "Orders", false))
	assert.Equal(t, "orderItems", n.TableGraphQLName("public", "order_items", true))
}

func TestTableTypeName(t *testing.T) {
	n := Default()

	assert.Equal(t, "Orders", n.TableTypeName("dbo", "Orders", true))
	assert.Equal(t, "SalesOrders", n.TableTypeName("sales", "orders", false))
}

func TestReservedFieldPatterns(t *testing.T) {
	n := Default()

	assert.Equal(t, "orders_agg_", n.ToGraphQLName("orders_agg"))
	assert.Equal(t, "sp_totals_", n.ToGraphQLName("sp_totals"))
	assert.Equal(t, "ordersAgg", n.ToGraphQLName("orders_Agg"))
}

func TestNormalizedName(t *testing.T) {
	n := Default()

	assert.Equal(t, "author", n.NormalizedName("Authors"))
	assert.Equal(t, "book", n.NormalizedName("books"))
	assert.Equal(t, "orderitem", n.NormalizedName("order_items"))
}

func TestInflectionOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SingularOverrides["people"] = "person"
	cfg.PluralOverrides["person"] = "people"
	n := New(cfg, nil)

	assert.Equal(t, "person", n.Singularize("people"))
	assert.Equal(t, "people", n.Pluralize("person"))
	assert.Equal(t, "order", n.Singularize("orders"))
}

func TestProcedureGraphQLName(t *testing.T) {
	n := Default()

	assert.Equal(t, "order_totals", n.ProcedureGraphQLName("dbo", "order_totals", true))
	assert.Equal(t, "audit_order_totals", n.ProcedureGraphQLName("audit", "order_totals", false))
}

func TestCollisionResolverSuffixes(t *testing.T) {
	r := NewCollisionResolver(nil)

	assert.Equal(t, "Orders", r.RegisterType("Orders", "table:Orders"))
	assert.Equal(t, "Orders2", r.RegisterType("Orders", "table:orders"))
	assert.Equal(t, "Orders3", r.RegisterType("Orders", "table:ORDERS"))

	assert.Equal(t, "author", r.RegisterField("Books", "author", "link"))
	assert.Equal(t, "author2", r.RegisterField("Books", "author", "link"))
	assert.True(t, r.FieldExists("Books", "author"))
	assert.False(t, r.FieldExists("Books", "editor"))
}
