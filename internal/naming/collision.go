package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks names claimed during a model build and resolves
// duplicates by applying numeric suffixes. Link fields, column fields and
// generated type names all flow through it so one build never emits the same
// GraphQL name twice.
type CollisionResolver struct {
	seenTypes  map[string]string            // GraphQL type name → source
	seenFields map[string]map[string]string // owner name → field name → source
	logger     *slog.Logger
}

// NewCollisionResolver creates an empty resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seenTypes:  make(map[string]string),
		seenFields: make(map[string]map[string]string),
		logger:     logger,
	}
}

// RegisterType claims a GraphQL type name and returns the resolved name,
// suffixed when the plain name is taken.
func (c *CollisionResolver) RegisterType(graphqlName, source string) string {
	return c.resolveCollision(graphqlName, c.seenTypes, source)
}

// RegisterField claims a field name within an owner (a table type or a root
// type) and returns the resolved name.
func (c *CollisionResolver) RegisterField(owner, fieldName, source string) string {
	if c.seenFields[owner] == nil {
		c.seenFields[owner] = make(map[string]string)
	}
	return c.resolveCollision(fieldName, c.seenFields[owner], source)
}

// FieldExists reports whether a field name is already claimed on an owner.
func (c *CollisionResolver) FieldExists(owner, fieldName string) bool {
	if fields, ok := c.seenFields[owner]; ok {
		_, exists := fields[fieldName]
		return exists
	}
	return false
}

func (c *CollisionResolver) resolveCollision(name string, seen map[string]string, source string) string {
	if _, exists := seen[name]; !exists {
		seen[name] = source
		return name
	}

	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("name", name),
		slog.String("existing_source", seen[name]),
		slog.String("new_source", source),
	)

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		if _, exists := seen[suffixed]; !exists {
			seen[suffixed] = source
			return suffixed
		}
	}
}
