package execerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagesIncludeOffendingIdentifier(t *testing.T) {
	assert.Contains(t, TenantMissing("tenant_id").Error(), "tenant_id")
	assert.Contains(t, TenantNull("tenant_id").Error(), "tenant_id")
	assert.Contains(t, ClaimMissing("organization_ids").Error(), "organization_ids")
	assert.Contains(t, ClaimNull("organization_ids").Error(), "organization_ids")
	assert.Contains(t, ClaimEmpty("organization_ids").Error(), "organization_ids")
	assert.Contains(t, ColumnNotFound("deleted_at", "Users").Error(), "deleted_at")
	assert.Contains(t, ColumnNotFound("deleted_at", "Users").Error(), "Users")
	assert.Contains(t, TableNotFound("Orders").Error(), "Orders")
}

func TestCodeOfUnwrapsChain(t *testing.T) {
	inner := TenantMissing("tenant_id")
	wrapped := fmt.Errorf("apply transformers: %w", inner)

	assert.Equal(t, CodeTenantMissing, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("driver: connection reset")
	err := Wrap(cause, "executing query on %q", "Orders")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeExecution, err.Code)
	assert.Contains(t, err.Error(), "Orders")
	assert.NotContains(t, err.Error(), "connection reset")
}
