// Package execerr defines the single error kind the engine raises to its host.
package execerr

import (
	"errors"
	"fmt"
)

// Error codes carried by BifrostExecutionError. The message remains the
// host-facing contract; codes exist so callers and tests can branch without
// string matching.
const (
	CodeTenantMissing  = "tenant_missing"
	CodeTenantNull     = "tenant_null"
	CodeClaimMissing   = "claim_missing"
	CodeClaimNull      = "claim_null"
	CodeClaimEmpty     = "claim_empty"
	CodeInvalidFormat  = "invalid_format"
	CodeColumnNotFound = "column_not_found"
	CodeTableNotFound  = "table_not_found"
	CodeExecution      = "execution"
)

// BifrostExecutionError is the only error kind that crosses the engine
// boundary. The GraphQL layer converts it into the wire-level error envelope.
type BifrostExecutionError struct {
	Code    string
	Message string
	Err     error
}

func (e *BifrostExecutionError) Error() string {
	return e.Message
}

func (e *BifrostExecutionError) Unwrap() error {
	return e.Err
}

// New builds an execution error with the given code and formatted message.
func New(code, format string, args ...interface{}) *BifrostExecutionError {
	return &BifrostExecutionError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches an underlying cause while keeping the engine-facing message.
func Wrap(err error, format string, args ...interface{}) *BifrostExecutionError {
	return &BifrostExecutionError{
		Code:    CodeExecution,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// TenantMissing reports that the tenant key is absent from the user context.
func TenantMissing(key string) *BifrostExecutionError {
	return New(CodeTenantMissing, "tenant key %q missing from user context", key)
}

// TenantNull reports that the tenant key is present but carries a null value.
func TenantNull(key string) *BifrostExecutionError {
	return New(CodeTenantNull, "tenant key %q is null in user context", key)
}

// ClaimMissing reports that a claim referenced by an auto-filter mapping is absent.
func ClaimMissing(claim string) *BifrostExecutionError {
	return New(CodeClaimMissing, "claim %q missing from user context", claim)
}

// ClaimNull reports a claim present with a null value.
func ClaimNull(claim string) *BifrostExecutionError {
	return New(CodeClaimNull, "claim %q is null in user context", claim)
}

// ClaimEmpty reports a claim whose value is an empty list.
func ClaimEmpty(claim string) *BifrostExecutionError {
	return New(CodeClaimEmpty, "claim %q is an empty list in user context", claim)
}

// InvalidFormat reports a malformed metadata value.
func InvalidFormat(what, value string) *BifrostExecutionError {
	return New(CodeInvalidFormat, "invalid %s format: %q", what, value)
}

// ColumnNotFound reports a column the metadata names but the table lacks.
func ColumnNotFound(column, table string) *BifrostExecutionError {
	return New(CodeColumnNotFound, "column %q not found in table %q", column, table)
}

// TableNotFound reports a table name that resolves to nothing in the model.
func TableNotFound(table string) *BifrostExecutionError {
	return New(CodeTableNotFound, "table %q not found in model", table)
}

// CodeOf extracts the code from any error wrapping a BifrostExecutionError,
// or "" when the chain holds none.
func CodeOf(err error) string {
	var bee *BifrostExecutionError
	if errors.As(err, &bee) {
		return bee.Code
	}
	return ""
}
