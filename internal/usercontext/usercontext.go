// Package usercontext models the per-request claim map supplied by the host.
//
// The engine has no opinion about authentication; whatever the host puts in
// this map is trusted as-is. Accessors normalize the two shapes hosts send
// for roles and claims: a single string vs a list of strings, and a scalar
// vs a list.
package usercontext

import (
	"context"
	"strings"
)

// Well-known keys read by the engine. Tenant and audit keys are defaults;
// model metadata may override them.
const (
	DefaultTenantKey    = "tenant_id"
	DefaultUserAuditKey = "id"
	RolesKey            = "roles"
	IncludeDeletedKey   = "include_deleted"
)

// Map is the host-supplied user context.
type Map map[string]interface{}

// Clone returns a shallow copy so request-local additions (for example the
// _includeDeleted argument) never leak into the host's map.
func (m Map) Clone() Map {
	out := make(Map, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Value reports the raw value under key and whether the key exists.
func (m Map) Value(key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// Bool reads a boolean-ish value: true, "true" and 1 all count.
func (m Map) Bool(key string) bool {
	v, ok := m.Value(key)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

// HasRole reports whether the context carries the named role. Roles may be a
// single string or a list; comparison is case-insensitive.
func (m Map) HasRole(role string) bool {
	if role == "" {
		return false
	}
	v, ok := m.Value(RolesKey)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, role)
	case []string:
		for _, r := range t {
			if strings.EqualFold(r, role) {
				return true
			}
		}
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, role) {
				return true
			}
		}
	}
	return false
}

// IncludeDeleted reports whether soft-deleted rows were requested, either
// globally or for the specific schema-qualified table.
func (m Map) IncludeDeleted(schema, table string) bool {
	if m.Bool(IncludeDeletedKey) {
		return true
	}
	return m.Bool(IncludeDeletedKey + ":" + schema + "." + table)
}

// WithIncludeDeleted returns a copy with the per-table include-deleted key set.
func (m Map) WithIncludeDeleted(schema, table string) Map {
	out := m.Clone()
	out[IncludeDeletedKey+":"+schema+"."+table] = true
	return out
}

type contextKey struct{}

// WithContext attaches the user context to a request context.
func WithContext(ctx context.Context, m Map) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext extracts the user context, or nil when none was attached.
func FromContext(ctx context.Context) Map {
	if ctx == nil {
		return nil
	}
	if m, ok := ctx.Value(contextKey{}).(Map); ok {
		return m
	}
	return nil
}
