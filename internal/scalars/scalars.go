// Package scalars defines the custom scalar types the generated schema uses:
// JSON for procedure result sets and unmapped column types, NonNegativeInt for
// offsets, and Limit for row caps where -1 lifts the cap.
package scalars

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

func NonNegativeInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "NonNegativeInt",
		Description: "An integer greater than or equal to zero.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			intValue, ok := valueAST.(*ast.IntValue)
			if !ok {
				return nil
			}
			parsed, err := strconv.Atoi(intValue.Value)
			if err != nil || parsed < 0 {
				return nil
			}
			return parsed
		},
	})
}

// Limit admits integers >= -1. A value of -1 removes the row cap entirely,
// which NonNegativeInt cannot express.
func Limit() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Limit",
		Description: "An integer greater than or equal to -1; -1 means unlimited.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceLimit(value); ok {
				return parsed
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceLimit(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			intValue, ok := valueAST.(*ast.IntValue)
			if !ok {
				return nil
			}
			parsed, err := strconv.Atoi(intValue.Value)
			if err != nil || parsed < -1 {
				return nil
			}
			return parsed
		},
	})
}

func JSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "Arbitrary JSON value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return string(v)
			case string:
				return v
			case nil:
				return nil
			default:
				serialized, err := json.Marshal(v)
				if err != nil {
					slog.Default().Warn("failed to serialize JSON scalar", slog.String("error", err.Error()))
					return nil
				}
				return string(serialized)
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				return s
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return sv.Value
			}
			return nil
		},
	})
}

func coerceNonNegativeInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int32:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case int64:
		if v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceLimit(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < -1 {
			return 0, false
		}
		return v, true
	case int32:
		if v < -1 {
			return 0, false
		}
		return int(v), true
	case int64:
		if v < -1 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < -1 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < -1 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
