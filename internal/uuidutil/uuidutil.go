// Package uuidutil normalizes UUID values crossing the SQL boundary. Columns
// may store UUIDs as text, as RFC-4122 ordered bytes (binary/varbinary), or
// in SQL Server's uniqueidentifier layout where the first three groups are
// little-endian.
package uuidutil

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseString parses common UUID string formats and returns a normalized lower-case UUID.
func ParseString(raw string) (uuid.UUID, string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID value")
	}
	return parsed, strings.ToLower(parsed.String()), nil
}

// ParseBytes parses RFC-order UUID bytes and returns a normalized lower-case UUID.
func ParseBytes(raw []byte) (uuid.UUID, string, error) {
	parsed, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID bytes")
	}
	return parsed, strings.ToLower(parsed.String()), nil
}

// ParseMixedEndianBytes parses the 16-byte uniqueidentifier layout, swapping
// the first three groups back into RFC order.
func ParseMixedEndianBytes(raw []byte) (uuid.UUID, string, error) {
	if len(raw) != 16 {
		return uuid.Nil, "", fmt.Errorf("invalid UUID bytes")
	}
	rfc := make([]byte, 16)
	copy(rfc[8:], raw[8:])
	rfc[0], rfc[1], rfc[2], rfc[3] = raw[3], raw[2], raw[1], raw[0]
	rfc[4], rfc[5] = raw[5], raw[4]
	rfc[6], rfc[7] = raw[7], raw[6]
	return ParseBytes(rfc)
}

// ToBytes returns UUID bytes in RFC order.
func ToBytes(u uuid.UUID) []byte {
	out := make([]byte, len(u))
	copy(out, u[:])
	return out
}

// EncodeBinary converts a UUID string into the RFC byte form binary columns
// store. Values that are not UUID strings pass through unchanged.
func EncodeBinary(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	parsed, _, err := ParseString(s)
	if err != nil {
		return value
	}
	return ToBytes(parsed)
}

// IsBinaryStorageType reports whether a SQL type stores UUID values as
// RFC-order raw bytes.
func IsBinaryStorageType(dataType string) bool {
	base := baseType(dataType)
	return base == "binary" || base == "varbinary"
}

// IsMixedEndianType reports whether a SQL type stores UUID values in the
// uniqueidentifier byte layout.
func IsMixedEndianType(dataType string) bool {
	return baseType(dataType) == "uniqueidentifier"
}

// baseType strips the size specifier from a declared SQL type.
func baseType(dataType string) string {
	s := strings.ToLower(strings.TrimSpace(dataType))
	if idx := strings.Index(s, "("); idx != -1 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}
