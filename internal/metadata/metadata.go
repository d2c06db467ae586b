// Package metadata loads out-of-band annotations and attaches them to model
// nodes. Annotations come from a YAML sidecar file, a metadata table inside
// the target database, or both; file entries win on key collision.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Recognized keys. Unrecognized keys are kept but reported by Validate.
const (
	KeyTenantFilter         = "tenant-filter"
	KeyTenantContextKey     = "tenant-context-key"
	KeySoftDelete           = "soft-delete"
	KeySoftDeleteBy         = "soft-delete-by"
	KeyAutoFilter           = "auto-filter"
	KeyAutoFilterBypassRole = "auto-filter-bypass-role"
	KeyUserAuditKey         = "user-audit-key"
	KeyPopulate             = "populate"
	KeySPInclude            = "sp-include"
	KeySPExclude            = "sp-exclude"
	KeySPReadonly           = "sp-readonly"
	KeyDynamicJoins         = "dynamic-joins"
)

// Values accepted for the populate column key.
const (
	PopulateCreatedOn = "created-on"
	PopulateCreatedBy = "created-by"
	PopulateUpdatedOn = "updated-on"
	PopulateUpdatedBy = "updated-by"
	PopulateDeletedOn = "deleted-on"
	PopulateDeletedBy = "deleted-by"
)

var modelKeys = map[string]bool{
	KeyTenantContextKey:     true,
	KeyAutoFilterBypassRole: true,
	KeyUserAuditKey:         true,
	KeySPInclude:            true,
	KeySPExclude:            true,
	KeySPReadonly:           true,
	KeyDynamicJoins:         true,
}

var tableKeys = map[string]bool{
	KeyTenantFilter: true,
	KeySoftDelete:   true,
	KeySoftDeleteBy: true,
	KeyAutoFilter:   true,
}

var columnKeys = map[string]bool{
	KeyPopulate: true,
}

var populateValues = map[string]bool{
	PopulateCreatedOn: true,
	PopulateCreatedBy: true,
	PopulateUpdatedOn: true,
	PopulateUpdatedBy: true,
	PopulateDeletedOn: true,
	PopulateDeletedBy: true,
}

// Map holds the annotations attached to one model node.
type Map map[string]string

// Value returns the entry for key and whether it exists.
func (m Map) Value(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// Bool parses the entry as a boolean, returning def when the key is absent
// or unparseable.
func (m Map) Bool(key string, def bool) bool {
	v, ok := m.Value(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Clone returns an independent copy.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Bundle is the merged annotation set for one database. Table and column
// lookups are case-insensitive on database names; entries written without a
// schema match tables in any schema.
type Bundle struct {
	model   Map
	tables  map[string]Map
	columns map[string]Map
}

func NewBundle() *Bundle {
	return &Bundle{
		model:   make(Map),
		tables:  make(map[string]Map),
		columns: make(map[string]Map),
	}
}

func tableKey(schema, table string) string {
	return strings.ToLower(schema) + "." + strings.ToLower(table)
}

func columnKey(schema, table, column string) string {
	return tableKey(schema, table) + "." + strings.ToLower(column)
}

// SetModel records a model-scope entry.
func (b *Bundle) SetModel(key, value string) {
	b.model[key] = value
}

// SetTable records a table-scope entry. Schema may be empty to match the
// table in any schema.
func (b *Bundle) SetTable(schema, table, key, value string) {
	k := tableKey(schema, table)
	if b.tables[k] == nil {
		b.tables[k] = make(Map)
	}
	b.tables[k][key] = value
}

// SetColumn records a column-scope entry.
func (b *Bundle) SetColumn(schema, table, column, key, value string) {
	k := columnKey(schema, table, column)
	if b.columns[k] == nil {
		b.columns[k] = make(Map)
	}
	b.columns[k][key] = value
}

// Model returns the model-scope map.
func (b *Bundle) Model() Map {
	return b.model
}

// Table returns the merged map for a table: schema-qualified entries overlay
// unqualified ones.
func (b *Bundle) Table(schema, table string) Map {
	return mergeScoped(b.tables[tableKey("", table)], b.tables[tableKey(schema, table)])
}

// Column returns the merged map for a column.
func (b *Bundle) Column(schema, table, column string) Map {
	return mergeScoped(b.columns[columnKey("", table, column)], b.columns[columnKey(schema, table, column)])
}

func mergeScoped(base, over Map) Map {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(Map, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Overlay merges another bundle on top of this one. Entries in over replace
// entries here on key collision.
func (b *Bundle) Overlay(over *Bundle) {
	if over == nil {
		return
	}
	for k, v := range over.model {
		b.model[k] = v
	}
	for tk, m := range over.tables {
		if b.tables[tk] == nil {
			b.tables[tk] = make(Map)
		}
		for k, v := range m {
			b.tables[tk][k] = v
		}
	}
	for ck, m := range over.columns {
		if b.columns[ck] == nil {
			b.columns[ck] = make(Map)
		}
		for k, v := range m {
			b.columns[ck][k] = v
		}
	}
}

// Checksum returns a stable hash of the bundle contents. Two bundles holding
// the same entries produce the same checksum regardless of insertion order,
// so callers can compare loads across time to detect annotation changes.
func (b *Bundle) Checksum() string {
	hash := sha256.New()
	writeScoped(hash, "model", b.model)
	for _, tk := range sortedKeys(b.tables) {
		writeScoped(hash, "table:"+tk, b.tables[tk])
	}
	for _, ck := range sortedKeys(b.columns) {
		writeScoped(hash, "column:"+ck, b.columns[ck])
	}
	return hex.EncodeToString(hash.Sum(nil))
}

func writeScoped(w io.Writer, scope string, m Map) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s|%s|%s\n", scope, k, m[k])
	}
}

func sortedKeys(m map[string]Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate reports scope mismatches, unknown keys, and bad populate values
// as human-readable warnings. Loading proceeds regardless; the warnings are
// for operator logs.
func (b *Bundle) Validate() []string {
	var warns []string
	for k := range b.model {
		if !modelKeys[k] {
			warns = append(warns, "unknown model metadata key "+strconv.Quote(k))
		}
	}
	for tk, m := range b.tables {
		for k := range m {
			if !tableKeys[k] {
				warns = append(warns, "unknown table metadata key "+strconv.Quote(k)+" on "+tk)
			}
		}
	}
	for ck, m := range b.columns {
		for k, v := range m {
			if !columnKeys[k] {
				warns = append(warns, "unknown column metadata key "+strconv.Quote(k)+" on "+ck)
				continue
			}
			if k == KeyPopulate && !populateValues[strings.TrimSpace(v)] {
				warns = append(warns, "invalid populate value "+strconv.Quote(v)+" on "+ck)
			}
		}
	}
	return warns
}
