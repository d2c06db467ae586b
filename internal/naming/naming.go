// Package naming converts database identifiers into the GraphQL names the
// generated schema exposes: camelCase field names, PascalCase type names,
// singularized normalized names, and collision/reserved-word handling.
package naming

import (
	"log/slog"
	"strings"
	"unicode"
)

// Namer performs all name conversions for one model build.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration.
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration.
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a fresh model build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// Resolver exposes the collision resolver used during a model build.
func (n *Namer) Resolver() *CollisionResolver {
	return n.resolver
}

// ToGraphQLName camelCases a database identifier for use as a field name.
// Reserved names get a trailing underscore so the schema stays valid.
// Example: "tenant_id" -> "tenantId".
func (n *Namer) ToGraphQLName(dbName string) string {
	name := toCamelCase(dbName)
	if isReservedFieldName(name) {
		name = name + "_"
	}
	return name
}

// ToTypeName PascalCases a database identifier for use as a type name.
// Example: "user_profiles" -> "UserProfiles".
func (n *Namer) ToTypeName(dbName string) string {
	name := toPascalCase(dbName)
	if isReservedTypeName(name) {
		name = name + "_"
	}
	return name
}

// TableGraphQLName derives the full GraphQL name of a table: the camelCased
// table name, prefixed with "<schema>_" when the schema is not the dialect's
// default one.
func (n *Namer) TableGraphQLName(schema, table string, defaultSchema bool) string {
	name := toCamelCase(table)
	if !defaultSchema && schema != "" {
		name = strings.ToLower(schema) + "_" + name
	}
	if isReservedFieldName(name) {
		name = name + "_"
	}
	return name
}

// TableTypeName derives the GraphQL object type name for a table.
func (n *Namer) TableTypeName(schema, table string, defaultSchema bool) string {
	raw := table
	if !defaultSchema && schema != "" {
		raw = schema + "_" + table
	}
	return n.ToTypeName(raw)
}

// NormalizedName is the lower-cased singular form of a table name, used for
// link naming and case-insensitive lookups.
func (n *Namer) NormalizedName(dbName string) string {
	return strings.ToLower(n.Singularize(toCamelCase(dbName)))
}

// ProcedureGraphQLName derives the full GraphQL name of a stored procedure:
// the bare name in the default schema, "<schema>_<name>" otherwise.
func (n *Namer) ProcedureGraphQLName(schema, name string, defaultSchema bool) string {
	if defaultSchema || schema == "" {
		return name
	}
	return schema + "_" + name
}

func toPascalCase(s string) string {
	parts := splitIdentifier(s)
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(upperFirst(part))
	}
	if sb.Len() == 0 {
		return s
	}
	return sb.String()
}

func toCamelCase(s string) string {
	return lowerFirst(toPascalCase(s))
}

// splitIdentifier breaks a database identifier on separator characters.
// Interior capitalization is preserved (OrderItems stays OrderItems).
func splitIdentifier(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
