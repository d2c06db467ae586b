package usercontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRoleStringOrList(t *testing.T) {
	tests := []struct {
		name  string
		roles interface{}
		role  string
		want  bool
	}{
		{"single string match", "Admin", "admin", true},
		{"single string miss", "editor", "admin", false},
		{"string list match", []string{"editor", "ADMIN"}, "admin", true},
		{"interface list match", []interface{}{"editor", "Admin"}, "admin", true},
		{"interface list miss", []interface{}{"editor"}, "admin", false},
		{"non-string entries ignored", []interface{}{42, true}, "admin", false},
		{"empty role never matches", "admin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Map{RolesKey: tt.roles}
			assert.Equal(t, tt.want, m.HasRole(tt.role))
		})
	}

	assert.False(t, Map{}.HasRole("admin"))
	assert.False(t, Map(nil).HasRole("admin"))
}

func TestIncludeDeleted(t *testing.T) {
	assert.False(t, Map{}.IncludeDeleted("dbo", "Users"))
	assert.True(t, Map{IncludeDeletedKey: true}.IncludeDeleted("dbo", "Users"))
	assert.True(t, Map{"include_deleted:dbo.Users": true}.IncludeDeleted("dbo", "Users"))
	assert.False(t, Map{"include_deleted:dbo.Orders": true}.IncludeDeleted("dbo", "Users"))

	scoped := Map{}.WithIncludeDeleted("main", "books")
	assert.True(t, scoped.IncludeDeleted("main", "books"))
	assert.False(t, scoped.IncludeDeleted("main", "authors"))
}

func TestCloneDoesNotAliasOriginal(t *testing.T) {
	orig := Map{"tenant_id": 42}
	clone := orig.Clone()
	clone["extra"] = true

	_, ok := orig["extra"]
	assert.False(t, ok)
	assert.Equal(t, 42, clone["tenant_id"])
}

func TestBoolCoercions(t *testing.T) {
	m := Map{
		"b":  true,
		"s":  "TRUE",
		"i":  1,
		"f":  float64(1),
		"no": "yes",
	}
	assert.True(t, m.Bool("b"))
	assert.True(t, m.Bool("s"))
	assert.True(t, m.Bool("i"))
	assert.True(t, m.Bool("f"))
	assert.False(t, m.Bool("no"))
	assert.False(t, m.Bool("absent"))
}

func TestContextRoundTrip(t *testing.T) {
	m := Map{"tenant_id": 7}
	ctx := WithContext(context.Background(), m)

	got := FromContext(ctx)
	assert.Equal(t, m, got)
	assert.Nil(t, FromContext(context.Background()))
}
