package naming

import "strings"

// graphqlReservedTypeWords contains GraphQL keywords and built-in types
// that cannot serve as generated type names.
var graphqlReservedTypeWords = map[string]bool{
	// GraphQL language keywords
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"type":         true,
	"schema":       true,
	"scalar":       true,
	"enum":         true,
	"input":        true,
	"interface":    true,
	"union":        true,
	"fragment":     true,
	"directive":    true,
	"extend":       true,
	"implements":   true,
	"on":           true,

	// Built-in scalar types
	"int":     true,
	"float":   true,
	"string":  true,
	"boolean": true,
	"id":      true,

	// Boolean literals
	"true":  true,
	"false": true,
	"null":  true,

	// Root types generated for every model
	"database":      true,
	"databaseinput": true,
}

// isReservedTypeName checks if a type name is reserved.
func isReservedTypeName(name string) bool {
	lowerName := strings.ToLower(name)
	if strings.HasPrefix(lowerName, "__") {
		return true
	}
	if graphqlReservedTypeWords[lowerName] {
		return true
	}
	return isReservedPattern(lowerName)
}

// isReservedFieldName checks if a field name is reserved.
func isReservedFieldName(name string) bool {
	lowerName := strings.ToLower(name)
	if strings.HasPrefix(lowerName, "__") {
		return true
	}
	return isReservedPattern(lowerName)
}

// isReservedPattern checks for suffixes and prefixes the generated schema
// claims for itself.
func isReservedPattern(name string) bool {
	// _agg is the aggregate companion of every table field.
	if strings.HasSuffix(name, "_agg") {
		return true
	}
	// sp_ prefixes stored-procedure input/result type names.
	if strings.HasPrefix(name, "sp_") {
		return true
	}
	// _join_ prefixes dynamic-join fields.
	if strings.HasPrefix(name, "_join_") {
		return true
	}
	return false
}
