// Package transform implements the policy engine that rewrites queries and
// mutations before translation: tenant row filtering, claim-based auto
// filtering, soft-delete filtering and rewrite, and audit column population.
// Transformers are pure and never touch the database.
package transform

import (
	"sort"

	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/usercontext"
)

// Transformer priorities. Security policies run before data-integrity ones;
// a lower priority places the filter earlier in the combined AND list.
const (
	PriorityTenant     = 0
	PriorityAutoFilter = 1
	PrioritySoftDelete = 100
)

// FilterTransformer injects one policy filter into queries on tables it
// applies to.
type FilterTransformer interface {
	// Priority orders transformer output within the combined filter.
	Priority() int
	// AppliesTo reports whether this transformer has something to say about
	// the table under the given user context.
	AppliesTo(t *model.Table, m *model.Model, ctx usercontext.Map) bool
	// AdditionalFilter produces the policy filter. A nil filter with a nil
	// error means the transformer applies but has nothing to add.
	AdditionalFilter(t *model.Table, m *model.Model, ctx usercontext.Map) (query.Filter, error)
}

// QueryTransformerService runs a fixed transformer set over query trees.
type QueryTransformerService struct {
	transformers []FilterTransformer
}

// NewQueryTransformerService builds a service over the given transformers,
// ordered by ascending priority.
func NewQueryTransformerService(transformers ...FilterTransformer) *QueryTransformerService {
	sorted := make([]FilterTransformer, len(transformers))
	copy(sorted, transformers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &QueryTransformerService{transformers: sorted}
}

// DefaultQueryTransformers returns the standard policy chain: tenant,
// auto-filter, soft-delete.
func DefaultQueryTransformers() *QueryTransformerService {
	return NewQueryTransformerService(
		TenantFilter{},
		AutoFilter{},
		SoftDeleteFilter{},
	)
}

// ApplyTransformers rewrites the query's filter in place, combining the
// request's own filter with every applicable policy filter. It recurses
// into joined child queries so policy also guards linked tables. Applying
// twice with the same context yields the same tree: the combined filter is
// always rebuilt from the preserved user filter.
func (s *QueryTransformerService) ApplyTransformers(q *query.ObjectQuery, m *model.Model, ctx usercontext.Map) error {
	var added []query.Filter
	for _, tr := range s.transformers {
		if !tr.AppliesTo(q.Table, m, ctx) {
			continue
		}
		f, err := tr.AdditionalFilter(q.Table, m, ctx)
		if err != nil {
			return err
		}
		if f != nil {
			added = append(added, f)
		}
	}
	q.Filter = combine(q.UserFilter(), added)

	for _, join := range q.Joins {
		if err := s.ApplyTransformers(join.Query, m, ctx); err != nil {
			return err
		}
	}
	return nil
}

// combine applies the single combination rule: no filters yields nil, one
// filter passes through, more become one AND node with the existing filter
// first and transformer filters following in priority order.
func combine(existing query.Filter, added []query.Filter) query.Filter {
	all := make([]query.Filter, 0, len(added)+1)
	if existing != nil {
		all = append(all, existing)
	}
	all = append(all, added...)
	switch len(all) {
	case 0:
		return nil
	case 1:
		return all[0]
	default:
		return query.NewAnd(all...)
	}
}
