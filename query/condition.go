/*
Package query implements the boolean condition evaluator used by the
search/filter surface and by saved, replayable searches.

PURPOSE:
  Conditions are {field, operator, value} triples combined into composite
  queries {and, or, not, sortBy, sortOrder, limit}. This shape is what
  saved searches persist and what the evaluator consumes - it is the
  engine's one stable wire contract and must round-trip exactly through
  JSON.

OPERATORS:
  Operators are a closed, validated enumeration. An operator string that
  is not in the set is a construction-time error via Validate and an
  evaluation-time error via Evaluate - never a silent "no match".

COERCION:
  "amount" compares numerically, "date" temporally; every other field
  compares as case-sensitive text.

The evaluator is pure and stateless; no compensation semantics apply.
*/
package query

import (
	"fmt"
)

// =============================================================================
// OPERATORS
// =============================================================================

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpGreater     Operator = ">"
	OpGreaterEq   Operator = ">="
	OpLess        Operator = "<"
	OpLessEq      Operator = "<="
	OpBetween     Operator = "between"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
	OpIsNull      Operator = "isNull"
	OpIsNotNull   Operator = "isNotNull"
	OpIsEmpty     Operator = "isEmpty"
	OpIsNotEmpty  Operator = "isNotEmpty"
	OpRegex       Operator = "regex"
)

var operators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true,
	OpContains: true, OpNotContains: true,
	OpStartsWith: true, OpEndsWith: true,
	OpGreater: true, OpGreaterEq: true, OpLess: true, OpLessEq: true,
	OpBetween: true, OpIn: true, OpNotIn: true,
	OpIsNull: true, OpIsNotNull: true,
	OpIsEmpty: true, OpIsNotEmpty: true,
	OpRegex: true,
}

// Valid reports whether the operator is in the supported set.
func (o Operator) Valid() bool { return operators[o] }

// Queryable transaction fields.
var fields = map[string]bool{
	"id": true, "date": true, "description": true, "category": true,
	"amount": true, "account_id": true, "debt_account_id": true, "cleared": true,
}

// =============================================================================
// CONDITION AND QUERY
// =============================================================================

// Condition is one field test.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Validate rejects unknown operators, unknown fields, and value shapes
// the operator cannot work with.
func (c Condition) Validate() error {
	if !c.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	if !fields[c.Field] {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	switch c.Operator {
	case OpBetween:
		vals, ok := asSlice(c.Value)
		if !ok || len(vals) != 2 {
			return fmt.Errorf("between requires a [low, high] pair")
		}
	case OpIn, OpNotIn:
		if _, ok := asSlice(c.Value); !ok {
			return fmt.Errorf("%s requires a list value", c.Operator)
		}
	}
	return nil
}

// Query is a composite filter. And-conditions must all match (vacuously
// true when empty), Or-conditions need at least one match (vacuously true
// when empty), Not must not match.
type Query struct {
	And       []Condition `json:"and,omitempty"`
	Or        []Condition `json:"or,omitempty"`
	Not       *Condition  `json:"not,omitempty"`
	SortBy    string      `json:"sortBy,omitempty"`
	SortOrder string      `json:"sortOrder,omitempty"`
	Limit     int         `json:"limit,omitempty"`
}

// Validate checks every condition in the query.
func (q Query) Validate() error {
	for _, c := range q.And {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("and: %w", err)
		}
	}
	for _, c := range q.Or {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("or: %w", err)
		}
	}
	if q.Not != nil {
		if err := q.Not.Validate(); err != nil {
			return fmt.Errorf("not: %w", err)
		}
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("sortOrder must be asc or desc, got %q", q.SortOrder)
	}
	return nil
}

func asSlice(v any) ([]any, bool) {
	switch vv := v.(type) {
	case []any:
		return vv, true
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(vv))
		for i, f := range vv {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}
