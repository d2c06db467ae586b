package transform

import (
	"fmt"

	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/usercontext"
)

// MutationType classifies a mutation operation. Transformers may rewrite it
// (soft delete turns Delete into Update).
type MutationType int

const (
	MutationInsert MutationType = iota
	MutationUpdate
	MutationDelete
)

func (m MutationType) String() string {
	switch m {
	case MutationInsert:
		return "insert"
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	default:
		return fmt.Sprintf("mutation(%d)", int(m))
	}
}

// MutationTransformResult is what a mutation transformer hands back: the
// possibly rewritten operation, a fresh data map, an optional extra filter
// for the WHERE clause, and per-row errors collected instead of thrown.
type MutationTransformResult struct {
	MutationType     MutationType
	Data             map[string]interface{}
	AdditionalFilter query.Filter
	Errors           []error
}

// MutationTransformer rewrites one aspect of a mutation before execution.
type MutationTransformer interface {
	AppliesTo(t *model.Table, mt MutationType, ctx usercontext.Map) bool
	Transform(t *model.Table, m *model.Model, mt MutationType, data map[string]interface{}, ctx usercontext.Map) MutationTransformResult
}

// MutationTransformerService chains mutation transformers in a fixed order.
type MutationTransformerService struct {
	transformers []MutationTransformer
}

// NewMutationTransformerService builds a service that runs the transformers
// in the order given.
func NewMutationTransformerService(transformers ...MutationTransformer) *MutationTransformerService {
	return &MutationTransformerService{transformers: transformers}
}

// DefaultMutationTransformers returns the standard chain. Audit runs first
// so it stamps columns against the original operation; the soft-delete
// rewrite to Update happens after.
func DefaultMutationTransformers() *MutationTransformerService {
	return NewMutationTransformerService(
		BasicAuditModule{},
		SoftDeleteMutation{},
	)
}

// Transform runs the chain over one row. Each transformer sees the previous
// one's output; additional filters accumulate, errors are collected and
// stop the chain.
func (s *MutationTransformerService) Transform(t *model.Table, m *model.Model, mt MutationType, data map[string]interface{}, ctx usercontext.Map) MutationTransformResult {
	result := MutationTransformResult{
		MutationType: mt,
		Data:         cloneData(data),
	}
	for _, tr := range s.transformers {
		if !tr.AppliesTo(t, result.MutationType, ctx) {
			continue
		}
		next := tr.Transform(t, m, result.MutationType, result.Data, ctx)
		if len(next.Errors) > 0 {
			result.Errors = append(result.Errors, next.Errors...)
			return result
		}
		result.MutationType = next.MutationType
		result.Data = next.Data
		result.AdditionalFilter = combineMutationFilters(result.AdditionalFilter, next.AdditionalFilter)
	}
	return result
}

func combineMutationFilters(existing, added query.Filter) query.Filter {
	switch {
	case added == nil:
		return existing
	case existing == nil:
		return added
	default:
		return query.NewAnd(existing, added)
	}
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
