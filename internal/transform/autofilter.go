package transform

import (
	"strings"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/execerr"
	"bifrost-graphql/internal/model"
	"bifrost-graphql/internal/query"
	"bifrost-graphql/internal/usercontext"
)

// AutoFilter restricts queries by claims from the user context, driven by a
// table's auto-filter mapping ("column:claim, column:claim"). Users bearing
// the model's bypass role are exempt.
type AutoFilter struct{}

func (AutoFilter) Priority() int {
	return PriorityAutoFilter
}

func (AutoFilter) AppliesTo(t *model.Table, m *model.Model, ctx usercontext.Map) bool {
	if _, ok := t.AutoFilterSpec(); !ok {
		return false
	}
	if role := m.AutoFilterBypassRole(); role != "" && ctx.HasRole(role) {
		return false
	}
	return true
}

func (AutoFilter) AdditionalFilter(t *model.Table, _ *model.Model, ctx usercontext.Map) (query.Filter, error) {
	spec, _ := t.AutoFilterSpec()
	pairs, err := parseAutoFilterSpec(spec)
	if err != nil {
		return nil, err
	}

	filters := make([]query.Filter, 0, len(pairs))
	for _, pair := range pairs {
		value, ok := ctx.Value(pair.claim)
		if !ok {
			return nil, execerr.ClaimMissing(pair.claim)
		}
		if value == nil {
			return nil, execerr.ClaimNull(pair.claim)
		}
		// Claim values are either a scalar or a list; one shape test decides
		// between an equality and an IN filter.
		switch v := value.(type) {
		case []interface{}:
			if len(v) == 0 {
				return nil, execerr.ClaimEmpty(pair.claim)
			}
			filters = append(filters, query.NewLeaf(t.DbName, pair.column, dialect.OpIn, v))
		default:
			filters = append(filters, query.NewLeaf(t.DbName, pair.column, dialect.OpEq, value))
		}
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return query.NewAnd(filters...), nil
}

type autoFilterPair struct {
	column string
	claim  string
}

func parseAutoFilterSpec(spec string) ([]autoFilterPair, error) {
	var pairs []autoFilterPair
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		column, claim, found := strings.Cut(token, ":")
		if !found {
			return nil, execerr.InvalidFormat("auto-filter mapping", token)
		}
		column = strings.TrimSpace(column)
		claim = strings.TrimSpace(claim)
		if column == "" || claim == "" {
			return nil, execerr.InvalidFormat("auto-filter mapping", token)
		}
		pairs = append(pairs, autoFilterPair{column: column, claim: claim})
	}
	return pairs, nil
}
