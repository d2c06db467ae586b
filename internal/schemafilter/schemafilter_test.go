package schemafilter

import (
	"testing"

	"bifrost-graphql/internal/metadata"
)

func TestProcedureFilter_IncludesAllByDefault(t *testing.T) {
	f, err := NewProcedureFilter(metadata.Map{})
	if err != nil {
		t.Fatalf("NewProcedureFilter: %v", err)
	}
	if !f.Include("dbo", "GetOrders") {
		t.Fatal("expected every procedure included without patterns")
	}
	if f.ReadOnly("dbo", "GetOrders") {
		t.Fatal("expected procedures to default to mutating")
	}
}

func TestProcedureFilter_ExcludeWins(t *testing.T) {
	f, err := NewProcedureFilter(metadata.Map{
		metadata.KeySPInclude: "^Get",
		metadata.KeySPExclude: "Internal",
	})
	if err != nil {
		t.Fatalf("NewProcedureFilter: %v", err)
	}

	if !f.Include("dbo", "GetOrders") {
		t.Error("GetOrders should match include")
	}
	if f.Include("dbo", "GetInternalState") {
		t.Error("exclude must win when both patterns match")
	}
	if f.Include("dbo", "DropEverything") {
		t.Error("non-matching name should fall outside include")
	}
}

func TestProcedureFilter_CaseInsensitive(t *testing.T) {
	f, err := NewProcedureFilter(metadata.Map{metadata.KeySPExclude: "^temp_"})
	if err != nil {
		t.Fatalf("NewProcedureFilter: %v", err)
	}
	if f.Include("dbo", "TEMP_Cleanup") {
		t.Error("exclude should match case-insensitively")
	}
}

func TestProcedureFilter_MatchesQualifiedName(t *testing.T) {
	f, err := NewProcedureFilter(metadata.Map{metadata.KeySPReadonly: `^reporting\.`})
	if err != nil {
		t.Fatalf("NewProcedureFilter: %v", err)
	}
	if !f.ReadOnly("reporting", "monthly_totals") {
		t.Error("expected schema-qualified match")
	}
	if f.ReadOnly("dbo", "monthly_totals") {
		t.Error("other schemas should not match")
	}
}

func TestProcedureFilter_BadPattern(t *testing.T) {
	if _, err := NewProcedureFilter(metadata.Map{metadata.KeySPInclude: "("}); err == nil {
		t.Fatal("expected compile error for invalid pattern")
	}
}
