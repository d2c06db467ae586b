package transform

import (
	"time"

	"bifrost-graphql/internal/metadata"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/usercontext"
)

// BasicAuditModule populates audit columns declared through populate column
// metadata. All timestamps written by one operation carry the same UTC
// instant, and client-supplied values for audit columns are overwritten.
type BasicAuditModule struct{}

func (BasicAuditModule) AppliesTo(t *model.Table, _ MutationType, _ usercontext.Map) bool {
	for _, kind := range []string{
		metadata.PopulateCreatedOn, metadata.PopulateCreatedBy,
		metadata.PopulateUpdatedOn, metadata.PopulateUpdatedBy,
		metadata.PopulateDeletedOn, metadata.PopulateDeletedBy,
	} {
		if len(t.PopulateColumns(kind)) > 0 {
			return true
		}
	}
	return false
}

func (BasicAuditModule) Transform(t *model.Table, m *model.Model, mt MutationType, data map[string]interface{}, ctx usercontext.Map) MutationTransformResult {
	result := MutationTransformResult{
		MutationType: mt,
		Data:         cloneData(data),
	}

	now := time.Now().UTC()
	setTime := func(kind string) {
		for _, col := range t.PopulateColumns(kind) {
			result.Data[col.DbName] = now
		}
	}

	// User columns are only touched when the model explicitly configures a
	// user-audit-key; the value may still be null when the context lacks it.
	setUser := func(kind string) {
		if !m.HasUserAuditKey() {
			return
		}
		user, _ := ctx.Value(m.UserAuditKey())
		for _, col := range t.PopulateColumns(kind) {
			result.Data[col.DbName] = user
		}
	}

	switch mt {
	case MutationInsert:
		setTime(metadata.PopulateCreatedOn)
		setTime(metadata.PopulateUpdatedOn)
		setUser(metadata.PopulateCreatedBy)
		setUser(metadata.PopulateUpdatedBy)
	case MutationUpdate:
		setTime(metadata.PopulateUpdatedOn)
		setUser(metadata.PopulateUpdatedBy)
	case MutationDelete:
		setTime(metadata.PopulateUpdatedOn)
		setTime(metadata.PopulateDeletedOn)
		setUser(metadata.PopulateUpdatedBy)
		setUser(metadata.PopulateDeletedBy)
	}
	return result
}
